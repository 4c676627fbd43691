package version

import "runtime"

var (
	// These values are injected during build - DO NOT MODIFY
	Version   = "VERSION_PLACEHOLDER"
	CommitSHA = "COMMIT_PLACEHOLDER"
)

func GetVersionInfo() string {
	return "pagedesk " + Version
}

func GetDetailedVersionInfo() string {
	return "pagedesk\n" +
		"Version:  " + Version + "\n" +
		"Commit:   " + CommitSHA + "\n" +
		"Platform: " + runtime.GOOS + "/" + runtime.GOARCH + "\n"
}
