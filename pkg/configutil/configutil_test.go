package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl     string `json:"base_url"`
	Unit        string `json:"unit"`
	Concurrency int    `json:"concurrency"`
}

func writeFile(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// comments are allowed
		base_url: "http://isa.example/REPORTS",
		unit: "Informatique",
		concurrency: 2,
	}`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, testConfig{
		BaseUrl:     "http://isa.example/REPORTS",
		Unit:        "Informatique",
		Concurrency: 2,
	}, cfg)

	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ unit: "Mathématiques" }`)

	cfg, err = ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Mathématiques", cfg.Unit)
	require.Equal(t, "http://isa.example/REPORTS", cfg.BaseUrl)
	require.Equal(t, 2, cfg.Concurrency)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWithDefaults(t *testing.T) {
	cfg, err := WithDefaults(
		testConfig{Unit: "Physique"},
		testConfig{Unit: "Informatique", Concurrency: 4},
	)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, testConfig{Unit: "Physique", Concurrency: 4}, cfg)
}
