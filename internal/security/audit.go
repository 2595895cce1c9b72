// Package security audits the local gostly file and bridge posture.
package security

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/treykane/gostly/internal/appconfig"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Finding struct {
	Severity       Severity `json:"severity"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type AuditReport struct {
	Findings []Finding `json:"findings"`
}

func (r AuditReport) HasHigh() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// RunLocalAudit loads config.yaml and inspects it together with the files in
// the config directory. Profile passwords and the bridge token live there.
func RunLocalAudit() (AuditReport, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return AuditReport{}, err
	}
	cfgDir, err := appconfig.ConfigDir()
	if err != nil {
		return AuditReport{}, err
	}
	return Audit(cfg, cfgDir), nil
}

// Audit checks cfg and the files under cfgDir.
func Audit(cfg appconfig.Config, cfgDir string) AuditReport {
	var findings []Finding
	findings = append(findings, bridgeFindings(cfg.Bridge)...)

	checkPathPerm(&findings, cfgDir, 0o700, false)
	for _, name := range []string{"config.yaml", "gostly.db", "timeline.jsonl", "history.json"} {
		checkPathPerm(&findings, filepath.Join(cfgDir, name), 0o600, true)
	}
	checkPathPerm(&findings, filepath.Join(cfgDir, "engine"), 0o700, false)

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return severityRank(findings[i].Severity) > severityRank(findings[j].Severity)
		}
		if findings[i].Target != findings[j].Target {
			return findings[i].Target < findings[j].Target
		}
		return findings[i].Message < findings[j].Message
	})
	return AuditReport{Findings: findings}
}

func bridgeFindings(b appconfig.BridgeConfig) []Finding {
	if IsLoopback(b.Listen) {
		return nil
	}
	if strings.TrimSpace(b.Token) == "" {
		return []Finding{{
			Severity:       SeverityHigh,
			Target:         "bridge.listen",
			Message:        fmt.Sprintf("bridge listens on %s without a token", b.Listen),
			Recommendation: "set bridge.token or bind bridge.listen to 127.0.0.1",
		}}
	}
	return []Finding{{
		Severity:       SeverityLow,
		Target:         "bridge.listen",
		Message:        fmt.Sprintf("bridge listens on %s over plain websocket", b.Listen),
		Recommendation: "reach the daemon through an SSH tunnel or bind to 127.0.0.1",
	}}
}

// IsLoopback reports whether a host:port listen address only accepts local
// connections. An empty host means every interface.
func IsLoopback(listen string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(listen))
	if err != nil || host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

func checkPathPerm(findings *[]Finding, path string, max os.FileMode, isFile bool) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		*findings = append(*findings, Finding{
			Severity:       SeverityLow,
			Target:         path,
			Message:        fmt.Sprintf("unable to inspect permissions: %v", err),
			Recommendation: "verify path and permissions manually",
		})
		return
	}
	mode := st.Mode().Perm()
	if mode&^max != 0 {
		kind := "directory"
		if isFile {
			kind = "file"
		}
		*findings = append(*findings, Finding{
			Severity:       SeverityMedium,
			Target:         path,
			Message:        fmt.Sprintf("%s permissions are too broad (%#o)", kind, mode),
			Recommendation: fmt.Sprintf("chmod %#o %s", max, path),
		})
	}
}
