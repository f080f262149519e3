package config

import "path/filepath"

const (
	// CurrentVersion is the config_version written by this release.
	CurrentVersion = 1

	appName                        = "mp4forge"
	defaultStateDir                = "~/.local/share/mp4forge"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultAPIBind                 = "127.0.0.1:7488"
	defaultMP4BoxKillTimeout       = 2
	defaultQueueStopTimeout        = 30
	defaultQueuePersist            = true
	defaultNotifyRequestTimeout    = 10
	defaultQueueDBName             = "queue.db"
	defaultLockFileName            = "mp4forge.lock"
	portableModeEnv                = "PORTABLE_MODE"
	portableStateDirName           = "data"
	configFileName                 = "config.toml"
	mp4boxBinaryName               = "MP4Box"
	mp4boxLowercaseBinaryName      = "mp4box"
	defaultNotifyOnComplete        = true
	defaultNotifyOnFailure         = true
	defaultNotifyOnQueueCompletion = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	stateDir := defaultStateDir
	if dir, ok := portableDir(); ok {
		stateDir = filepath.Join(dir, portableStateDirName)
	}
	return Config{
		ConfigVersion: CurrentVersion,
		Paths: Paths{
			StateDir: stateDir,
		},
		MP4Box: MP4Box{
			KillTimeoutSeconds: defaultMP4BoxKillTimeout,
		},
		Queue: Queue{
			Persist:            defaultQueuePersist,
			StopTimeoutSeconds: defaultQueueStopTimeout,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNotifyRequestTimeout,
			OnComplete:       defaultNotifyOnComplete,
			OnFailure:        defaultNotifyOnFailure,
			OnQueueCompleted: defaultNotifyOnQueueCompletion,
		},
	}
}
