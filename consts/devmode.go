package consts

import "strings"

var (
	devmode string = "false"

	// Version is overridden at build time with -ldflags "-X ...consts.Version=..."
	Version = "dev"
)

const (
	AppName = "pinphotos"
	GitRepo = "bitbucket.org/kleinnic74/pinphotos"
)

func IsDevMode() bool {
	return strings.ToLower(devmode) == "true"
}

// SetDevMode switches dev mode on or off, used by the CLI --dev flag
func SetDevMode(on bool) {
	if on {
		devmode = "true"
	} else {
		devmode = "false"
	}
}

// UserAgent is sent with every outbound HTTP request
func UserAgent() string {
	return AppName + "/" + Version + " (" + GitRepo + ")"
}
