package config

import (
	"os"
	"path/filepath"
)

// defaultConfigNames are looked up, in order, in each search directory.
var defaultConfigNames = []string{"config.yaml", "config.yml", "config.json"}

// GetConfigPath resolves the configuration file: the --config flag, then
// TARIFFWATCH_CONFIG_PATH, then a default name in the working directory and
// finally next to the executable. It returns "" when nothing is found.
func GetConfigPath(configFilePathFlag string) string {
	for _, candidate := range []string{configFilePathFlag, os.Getenv(DefaultConfigEnvVar)} {
		if candidate != "" && fileExists(candidate) {
			return candidate
		}
	}

	for _, dir := range searchDirs() {
		for _, name := range defaultConfigNames {
			if path := filepath.Join(dir, name); fileExists(path) {
				return path
			}
		}
	}
	return ""
}

func searchDirs() []string {
	var dirs []string
	cwd, err := os.Getwd()
	if err == nil {
		dirs = append(dirs, cwd)
	}
	if exe, err := os.Executable(); err == nil {
		if exeDir := filepath.Dir(exe); exeDir != cwd {
			dirs = append(dirs, exeDir)
		}
	}
	return dirs
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}
