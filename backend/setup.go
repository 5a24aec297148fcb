package backend

import (
	"flag"

	"github.com/hatstand/cc1101/config"
	"github.com/jonstaryuk/gcloudzap"
	"go.uber.org/zap"
)

var (
	profilePath   = flag.String("profile", "", "Path to a YAML register profile. Empty uses the built-in 868MHz profile")
	gcloudProject = flag.String("gcloud-project", "", "Send logs to Cloud Logging in this project")
	gcloudLog     = flag.String("gcloud-log", "cc1101", "Cloud Logging log ID")
	debug         = flag.Bool("debug", false, "Log every packet step")
)

// Logger builds the process logger from the command line.
func Logger() (*zap.Logger, error) {
	if *gcloudProject != "" {
		if *debug {
			return gcloudzap.NewDevelopment(*gcloudProject, *gcloudLog)
		}
		return gcloudzap.NewProduction(*gcloudProject, *gcloudLog)
	}
	if *debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Profile returns the register profile named by -profile.
func Profile() (*config.Profile, error) {
	if *profilePath == "" {
		p := config.Default868
		return &p, nil
	}
	return config.Load(*profilePath)
}
