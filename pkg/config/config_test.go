package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Extra string `yaml:"extra"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_KeepsDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "atlas")
	p := writeFile(t, "name: ${SAMPLE_NAME}\n")

	s := sample{Port: 8080, Extra: "kept"}
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "atlas" || s.Port != 8080 || s.Extra != "kept" {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	p := writeFile(t, "")
	s := sample{Port: 1}
	if err := Load(p, &s); err != nil {
		t.Errorf("empty file: %v", err)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	p := writeFile(t, "name: x\nprot: 1\n")
	s := sample{Port: 1}
	err := Load(p, &s)
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	p := writeFile(t, "port: 0\n")
	s := sample{Port: 1}
	err := Load(p, &s)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var s sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &s); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestLoadOptional(t *testing.T) {
	s := sample{Port: 3}
	read, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if err != nil || read {
		t.Errorf("missing file: read=%v err=%v", read, err)
	}

	s = sample{}
	if _, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s); err == nil {
		t.Error("defaults must still be validated")
	}

	p := writeFile(t, "port: 9\n")
	read, err = LoadOptional(p, &s)
	if err != nil || !read || s.Port != 9 {
		t.Errorf("present file: read=%v err=%v s=%+v", read, err, s)
	}
}
