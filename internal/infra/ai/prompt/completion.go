package prompt

import (
	"fmt"

	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
)

// CodeTestCases asks the completion model for unit test cases as a JSON array.
// Versions are embedded verbatim.
func CodeTestCases(rec changes.Record) string {
	return fmt.Sprintf(`You are a senior software tester. A source file changed.

File: %s
Change type: %s

Previous version:
%s

Current version:
%s

Write unit test cases for the current version. Respond with a JSON array only, no prose and no code fences.
Each element: {"id": <number>, "description": "<what is tested>", "input": "<test code or input>", "expected_output": "<expected result>"}
`, rec.FilePath, rec.ChangeType, rec.PreviousV, rec.CurrentV)
}

// DocumentChecklist asks for a validation checklist for non-code files.
func DocumentChecklist(rec changes.Record) string {
	return fmt.Sprintf(`You are a technical reviewer. A document changed.

Document: %s
Change type: %s

Previous version:
%s

Current version:
%s

Write a validation checklist a reviewer should run against the current version. Respond with a JSON array only, no prose and no code fences.
Each element: {"id": <number>, "description": "<what to verify>", "input": "<section or content checked>", "expected_output": "<what passes>"}
`, rec.FilePath, rec.ChangeType, rec.PreviousV, rec.CurrentV)
}
