package app

import (
	"fmt"
	"os"

	"nocaflow/pkg/config"
	"nocaflow/pkg/view"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, NOCAFLOW_DB_PATH env, or server.db_path in config")
	}

	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	for _, code := range eff.Config.Locale.Supported {
		if !supportedLocale(code) {
			return fmt.Errorf("unsupported locale %q: supported codes are %v", code, view.SupportedLocales)
		}
	}
	if d := eff.Config.Locale.Default; d != "" && !supportedLocale(d) {
		return fmt.Errorf("unsupported default locale %q", d)
	}

	if eff.Config.Blob.Endpoint != "" {
		if eff.Config.Blob.Bucket == "" {
			return fmt.Errorf("blob.endpoint set but blob.bucket is empty")
		}
		if eff.Config.Blob.AccessKey == "" || eff.Config.Blob.SecretKey == "" {
			return fmt.Errorf("blob credentials missing: set blob.access_key and blob.secret_key (or NOCAFLOW_BLOB_* env)")
		}
	}

	if eff.Config.Mail.ProviderURL != "" && eff.Config.Mail.APIKey == "" {
		return fmt.Errorf("mail.provider_url set but mail.api_key is empty")
	}

	if c := eff.Config.Retention.Cron; eff.Config.Retention.Enabled && c != "" {
		// expression validity is checked again by the scheduler; here we
		// only catch the obviously malformed case of too few fields
		fields := 0
		inField := false
		for _, r := range c {
			if r == ' ' || r == '\t' {
				inField = false
				continue
			}
			if !inField {
				fields++
				inField = true
			}
		}
		if fields < 5 {
			return fmt.Errorf("retention.cron %q does not look like a cron expression", c)
		}
	}
	return nil
}

func supportedLocale(code string) bool {
	for _, c := range view.SupportedLocales {
		if c == code {
			return true
		}
	}
	return false
}
