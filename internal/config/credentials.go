package config

// CredentialsConfig configures the CredentialVault (§4.7).
type CredentialsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// PassphraseEnv names the environment variable holding the vault
	// passphrase; the key is SHA-256(passphrase).
	PassphraseEnv string `yaml:"passphrase_env" json:"passphrase_env"`

	// MinPassphraseLen enforces the "at least 16 chars" floor from §4.7.
	MinPassphraseLen int `yaml:"min_passphrase_len" json:"min_passphrase_len"`

	// DatabasePath overrides the default credentials.db location.
	DatabasePath string `yaml:"database_path" json:"database_path,omitempty"`
}

func DefaultCredentialsConfig() CredentialsConfig {
	return CredentialsConfig{
		Enabled:          true,
		PassphraseEnv:    "HYBRIDMEM_VAULT_PASSPHRASE",
		MinPassphraseLen: 16,
	}
}
