package config

// RedactedSettings is the exported view of Settings safe to hand to logs,
// the status API, or the UI: API credentials are never included verbatim.
type RedactedSettings struct {
	TradingMode string `json:"trading_mode"`
	DataDir     string `json:"data_dir"`
	APIKey      string `json:"api_key"`
	Port        int    `json:"port"`
}

const redactedSecret = "***redacted***"

// Redacted returns a copy of s safe for export: APIKey is replaced with a
// fixed placeholder whenever it is non-empty, and APISecret is left out.
func (s *Settings) Redacted() RedactedSettings {
	key := ""
	if s.APIKey != "" {
		key = redactedSecret
	}
	return RedactedSettings{
		TradingMode: s.TradingMode,
		DataDir:     s.DataDir,
		APIKey:      key,
		Port:        s.Port,
	}
}
