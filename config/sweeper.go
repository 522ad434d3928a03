package config

type SweeperCfg struct {
	// Rate limits how many expiry scans the sweeper performs per second.
	// Each scan removes every entry that is expired "as of now" from both
	// the memory and persisted layers.
	Rate int `yaml:"rate"`
}

func (cfg *SweeperCfg) Enabled() bool {
	return cfg != nil
}
