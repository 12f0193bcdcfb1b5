package keybackend

// KeysConfig holds configuration for loading access keys.
type KeysConfig struct {
	Inline []KeyPair `mapstructure:"inline" yaml:"inline"` // Inline key pairs from config
	File   string    `mapstructure:"file"   yaml:"file"`   // Path to JSON file containing key pairs
}

// Empty reports whether the configuration names no keys at all.
func (c KeysConfig) Empty() bool {
	return len(c.Inline) == 0 && c.File == ""
}

func (p KeyPair) complete() bool {
	return p.AccessKey != "" && p.SecretKey != ""
}

// NewSecretStore builds the Auth role from cfg. Inline pairs are added
// first, then the keys file, so a file entry replaces an inline entry with
// the same access key. Pairs missing either half are ignored.
func NewSecretStore(cfg KeysConfig) (*MapSecretStore, error) {
	store := NewMapSecretStore(nil)

	for _, p := range cfg.Inline {
		if p.complete() {
			store.Set(p.AccessKey, p.SecretKey)
		}
	}

	if cfg.File == "" {
		return store, nil
	}

	pairs, err := readPairs(cfg.File)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if p.complete() {
			store.Set(p.AccessKey, p.SecretKey)
		}
	}

	return store, nil
}
