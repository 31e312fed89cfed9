package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-reads the config file whenever it changes on disk and passes the
// validated result to onChange. An edit that fails to load or validate is
// reported to onError and the previous configuration stays in effect.
//
// Watch does nothing when no config file is in use.
func Watch(onChange func(*Config), onError func(error)) bool {
	if viper.ConfigFileUsed() == "" {
		return false
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		handleChange(e, onChange, onError)
	})
	viper.WatchConfig()
	return true
}

func handleChange(e fsnotify.Event, onChange func(*Config), onError func(error)) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	if err := viper.ReadInConfig(); err != nil {
		onError(err)
		return
	}
	cfg, err := Load()
	if err != nil {
		onError(err)
		return
	}
	onChange(cfg)
}
