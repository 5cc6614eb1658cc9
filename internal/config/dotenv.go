package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the first .env file found in the working directory, two levels
// above it, or ../../ relative to it. Variables already set in the environment win.
// It returns the absolute path that was loaded, or "" when none was found.
func LoadDotEnv() string {
	candidates := []string{".env", filepath.Join("..", "..", ".env")}

	if workDir, err := os.Getwd(); err == nil {
		parentDir := filepath.Dir(workDir)
		candidates = append(candidates,
			filepath.Join(workDir, ".env"),
			filepath.Join(parentDir, ".env"),
			filepath.Join(filepath.Dir(parentDir), ".env"),
		)
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			continue
		}
		absPath, _ := filepath.Abs(candidate)
		return absPath
	}
	return ""
}
