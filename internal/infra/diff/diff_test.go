package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnified(t *testing.T) {
	tests := []struct {
		name        string
		old, new    string
		wantText    string
		wantAdded   int
		wantRemoved int
	}{
		{
			name:     "identical",
			old:      "a\nb\n",
			new:      "a\nb\n",
			wantText: "",
		},
		{
			name: "modified line",
			old:  "a\nb\nc\n",
			new:  "a\nB\nc\n",
			wantText: "diff --git a/src/x.py b/src/x.py\n" +
				"--- a/src/x.py\n" +
				"+++ b/src/x.py\n" +
				"@@ -1,3 +1,3 @@\n" +
				" a\n" +
				"-b\n" +
				"+B\n" +
				" c\n",
			wantAdded:   1,
			wantRemoved: 1,
		},
		{
			name: "new file",
			old:  "",
			new:  "x\ny\n",
			wantText: "diff --git a/src/x.py b/src/x.py\n" +
				"new file mode 100644\n" +
				"--- /dev/null\n" +
				"+++ b/src/x.py\n" +
				"@@ -0,0 +1,2 @@\n" +
				"+x\n" +
				"+y\n",
			wantAdded: 2,
		},
		{
			name: "deleted file",
			old:  "x\n",
			new:  "",
			wantText: "diff --git a/src/x.py b/src/x.py\n" +
				"deleted file mode 100644\n" +
				"--- a/src/x.py\n" +
				"+++ /dev/null\n" +
				"@@ -1,1 +0,0 @@\n" +
				"-x\n",
			wantRemoved: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Unified("src/x.py", tt.old, tt.new)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantAdded, got.Added)
			assert.Equal(t, tt.wantRemoved, got.Removed)
		})
	}
}

func TestUnified_SeparateHunks(t *testing.T) {
	old := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n"
	cur := "one\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\ntwelve\n"

	got := Unified("n.txt", old, cur)
	assert.Equal(t, 2, got.Added)
	assert.Equal(t, 2, got.Removed)
	assert.Contains(t, got.Text, "@@ -1,4 +1,4 @@\n-1\n+one\n 2\n 3\n 4\n")
	assert.Contains(t, got.Text, "@@ -9,4 +9,4 @@\n 9\n 10\n 11\n-12\n+twelve\n")
}
