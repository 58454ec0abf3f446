package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditor(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "audit")
	auditor := NewAuditor(tempDir)

	t.Run("SaveJSON creates audit directory and saves file", func(t *testing.T) {
		testData := map[string]interface{}{
			"reply":  "```mermaid\nbroken",
			"number": 42,
			"array":  []string{"item1", "item2"},
		}

		filename, err := auditor.SaveJSON(testData)
		require.NoError(t, err)
		assert.Contains(t, filename, ".json")

		fileContent, err := os.ReadFile(filepath.Join(tempDir, filename))
		require.NoError(t, err)

		var savedData map[string]interface{}
		require.NoError(t, json.Unmarshal(fileContent, &savedData))

		assert.Equal(t, testData["reply"], savedData["reply"])
		assert.Equal(t, float64(42), savedData["number"])
		assert.Equal(t, []interface{}{"item1", "item2"}, savedData["array"])
	})

	t.Run("SaveJSON generates unique filenames", func(t *testing.T) {
		testData := map[string]string{"key": "value"}

		filename1, err := auditor.SaveJSON(testData)
		require.NoError(t, err)
		filename2, err := auditor.SaveJSON(testData)
		require.NoError(t, err)

		assert.NotEqual(t, filename1, filename2)
	})

	t.Run("SaveJSON rejects unmarshalable data", func(t *testing.T) {
		_, err := auditor.SaveJSON(map[string]any{"ch": make(chan int)})
		assert.Error(t, err)
	})
}

func TestAuditor_Prune(t *testing.T) {
	dir := t.TempDir()
	auditor := NewAuditor(dir)

	oldName, err := auditor.SaveJSON(map[string]string{"age": "old"})
	require.NoError(t, err)
	newName, err := auditor.SaveJSON(map[string]string{"age": "new"})
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, oldName), past, past))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0644))

	removed, err := auditor.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(filepath.Join(dir, oldName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, newName))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}

func TestAuditor_PruneMissingDir(t *testing.T) {
	auditor := NewAuditor(filepath.Join(t.TempDir(), "absent"))
	removed, err := auditor.Prune(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
