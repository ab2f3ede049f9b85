package banner

import (
	"fmt"

	"nocaflow/pkg/config"
)

const banner = `
███╗   ██╗ ██████╗  ██████╗ █████╗ ███████╗██╗      ██████╗ ██╗    ██╗
████╗  ██║██╔═══██╗██╔════╝██╔══██╗██╔════╝██║     ██╔═══██╗██║    ██║
██╔██╗ ██║██║   ██║██║     ███████║█████╗  ██║     ██║   ██║██║ █╗ ██║
██║╚██╗██║██║   ██║██║     ██╔══██║██╔══╝  ██║     ██║   ██║██║███╗██║
██║ ╚████║╚██████╔╝╚██████╗██║  ██║██║     ███████╗╚██████╔╝╚███╔███╔╝
╚═╝  ╚═══╝ ╚═════╝  ╚═════╝╚═╝  ╚═╝╚═╝     ╚══════╝ ╚═════╝  ╚══╝╚══╝
`

// Print writes the startup banner with the effective configuration
// summary and a short endpoint reference.
func Print(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" {
		dbPath = eff.Config.Server.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", src)
	fmt.Printf("Locales:  default=%s\n", defaultLocale(eff.Config))

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/conversations                         - Start (or reuse) a conversation")
	fmt.Println("GET  /v1/conversations?q=<filter>              - Decorated conversation list")
	fmt.Println("GET  /v1/conversations/stream                  - SSE list snapshots")
	fmt.Println("POST /v1/conversations/{id}/messages           - Send (add ?ephemeral=1&ttl=1h)")
	fmt.Println("GET  /v1/conversations/{id}/messages?q=<term>  - Decorated stream, search highlight")
	fmt.Println("POST /v1/conversations/{id}/attachments        - Upload image or PDF")
	fmt.Println("POST /v1/mail                                  - Relay an outbound email")
	fmt.Println("GET  /v1/guest/conversations                   - Read-only demo data")

	fmt.Println("\n== Production? =================================================")
	be := len(eff.Config.Security.APIKeys.Backend)
	fe := len(eff.Config.Security.APIKeys.Frontend)
	if be == 0 && fe == 0 {
		fmt.Println("No API keys configured: every authenticated route will refuse requests")
	} else {
		fmt.Printf("API keys: backend=%d frontend=%d admin=%d\n", be, fe, len(eff.Config.Security.APIKeys.Admin))
	}
	if eff.Config.Server.TLS.CertFile == "" {
		fmt.Println("TLS not configured; terminate it upstream or set server.tls")
	}
	fmt.Println()
}

func defaultLocale(cfg config.Config) string {
	if cfg.Locale.Default != "" {
		return cfg.Locale.Default
	}
	return "en"
}
