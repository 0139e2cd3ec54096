package browser

import "github.com/LouYuanbo1/tableharvester/internal/config"

// launchSettings 浏览器启动参数,两种驱动共用
type launchSettings struct {
	bin                  string
	userDataDir          string
	headless             bool
	disableBlinkFeatures string
	disableDevShmUsage   bool
	noSandbox            bool
	userAgent            string
	leakless             bool
}

type LaunchOption func(*launchSettings)

func WithBin(bin string) LaunchOption {
	return func(s *launchSettings) { s.bin = bin }
}

func WithUserDataDir(dir string) LaunchOption {
	return func(s *launchSettings) { s.userDataDir = dir }
}

func WithHeadless(headless bool) LaunchOption {
	return func(s *launchSettings) { s.headless = headless }
}

func WithDisableBlinkFeatures(features string) LaunchOption {
	return func(s *launchSettings) { s.disableBlinkFeatures = features }
}

func WithDisableDevShmUsage(disable bool) LaunchOption {
	return func(s *launchSettings) { s.disableDevShmUsage = disable }
}

func WithNoSandbox(noSandbox bool) LaunchOption {
	return func(s *launchSettings) { s.noSandbox = noSandbox }
}

func WithUserAgent(ua string) LaunchOption {
	return func(s *launchSettings) { s.userAgent = ua }
}

func WithLeakless(leakless bool) LaunchOption {
	return func(s *launchSettings) { s.leakless = leakless }
}

func newLaunchSettings(opts ...LaunchOption) launchSettings {
	var s launchSettings
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// LaunchOptionsFromConfig translates the browser block of the configuration.
func LaunchOptionsFromConfig(cfg config.BrowserConfig) []LaunchOption {
	return []LaunchOption{
		WithBin(cfg.Bin),
		WithUserDataDir(cfg.UserDataDir),
		WithHeadless(cfg.Headless),
		WithDisableBlinkFeatures(cfg.DisableBlinkFeatures),
		WithDisableDevShmUsage(cfg.DisableDevShmUsage),
		WithNoSandbox(cfg.NoSandbox),
		WithUserAgent(cfg.UserAgent),
		WithLeakless(cfg.Leakless),
	}
}
