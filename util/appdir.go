package util

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppDataDir returns an operating system specific directory to be used for
// storing application data for an application given its name. It follows
// each OS's convention: %LOCALAPPDATA%\<name> on Windows, ~/Library/Application
// Support/<name> on macOS, and ~/.<name> on everything else. The name is
// used as given (leading dots trimmed); $XDG_DATA_HOME is not consulted.
func AppDataDir(name string, roaming bool) string {
	if name == "" || name == "." {
		return "."
	}

	name = trimLeadingDots(name)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if roaming {
			if v := os.Getenv("APPDATA"); v != "" {
				appData = v
			}
		}
		if appData == "" {
			appData = homeDir
		}
		return filepath.Join(appData, name)
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", name)
	default:
		return filepath.Join(homeDir, "."+name)
	}
}

func trimLeadingDots(name string) string {
	for len(name) > 0 && name[0] == '.' {
		name = name[1:]
	}
	return name
}
