package config

// APIConfig defines the local HTTP control surface.
type APIConfig struct {
	// Address is the listen address of the control API.
	Address string `json:"address"`
	// Token, when set, requires "Bearer <token>" on every request.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8088"
	}
}
