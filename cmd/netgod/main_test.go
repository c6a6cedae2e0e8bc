package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/netgodgame/netgod"
)

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "-c", filepath.Join(t.TempDir(), "netgod.ini")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	assert.Equal(t, nil, err)
	assert.Equal(t, "netgod "+netgod.Version+"\n", out)
}

func TestGenerateItem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item.json")
	_, err := execute(t, "generate", "item", "--seed", "42", "--type", "weapon", "-o", path)
	assert.Equal(t, nil, err)

	b, err := os.ReadFile(path)
	assert.Equal(t, nil, err)
	var item map[string]interface{}
	assert.Equal(t, nil, json.Unmarshal(b, &item))
	assert.Equal(t, "weapon", item["type"])
	assert.Equal(t, float64(42), item["seed"])
	generateArgs.out = ""
	generateArgs.itemType = ""
}

func TestGenerateQuestStdout(t *testing.T) {
	out, err := execute(t, "generate", "quest", "--seed", "7")
	assert.Equal(t, nil, err)
	assert.T(t, strings.HasPrefix(out, "{"), "quest should be printed as JSON")
}

func TestGenerateUnknownKind(t *testing.T) {
	_, err := execute(t, "generate", "dungeon")
	assert.NotEqual(t, nil, err)
}
