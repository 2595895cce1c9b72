// Package doctor runs local diagnostics for gostly.
package doctor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/treykane/gostly/internal/appconfig"
	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/engine"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/security"
	"github.com/treykane/gostly/internal/util"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Issue struct {
	Severity       Severity `json:"severity"`
	Check          string   `json:"check"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type Report struct {
	Engine engine.DebugInfo `json:"engine"`
	Issues []Issue          `json:"issues"`
}

func (r Report) HasHigh() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// Run executes local diagnostics. backend may be nil, in which case the
// profile and mapping checks are skipped.
func Run(ctx context.Context, cfg appconfig.Config, backend bridge.Backend) (Report, error) {
	report := Report{Engine: engine.Debug(), Issues: []Issue{}}
	issues := engineIssues(cfg.Engine.Binary, report.Engine)

	if backend != nil {
		profiles, err := backend.ListProfiles(ctx)
		if err != nil {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "backend",
				Target:         "profiles",
				Message:        bridge.Message(err),
				Recommendation: "check that `gostly serve` is running or drop --remote",
			})
		} else {
			issues = append(issues, duplicateListenIssues(profiles)...)
			issues = append(issues, ignoredAuthIssues(profiles)...)
		}
		if mappings, err := backend.ListHostMappings(ctx); err == nil {
			issues = append(issues, mappingIssues(mappings)...)
		}
	}

	if audit, err := security.RunLocalAudit(); err == nil {
		for _, f := range audit.Findings {
			issues = append(issues, Issue{
				Severity:       Severity(f.Severity),
				Check:          "security-audit",
				Target:         f.Target,
				Message:        f.Message,
				Recommendation: f.Recommendation,
			})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		ri := severityRank(issues[i].Severity)
		rj := severityRank(issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if issues[i].Check != issues[j].Check {
			return issues[i].Check < issues[j].Check
		}
		if issues[i].Target != issues[j].Target {
			return issues[i].Target < issues[j].Target
		}
		return issues[i].Message < issues[j].Message
	})
	report.Issues = append(report.Issues, issues...)
	return report, nil
}

func engineIssues(override string, info engine.DebugInfo) []Issue {
	var issues []Issue
	if _, err := engine.Locate(override); err != nil {
		target := "PATH"
		if strings.TrimSpace(override) != "" {
			target = override
		}
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "gost-binary",
			Target:         target,
			Message:        err.Error(),
			Recommendation: "install gost (https://gost.run) or set engine.binary in config.yaml",
		})
	}
	for _, loc := range info.Locations {
		if loc.Exists && !loc.Executable {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "gost-location",
				Target:         loc.Path,
				Message:        "file exists but is not executable",
				Recommendation: "chmod +x the binary or remove the stale file",
			})
		}
	}
	return issues
}

func duplicateListenIssues(profiles []model.Profile) []Issue {
	seen := map[string][]string{}
	for _, p := range profiles {
		key := util.BindKey(p.Listen)
		seen[key] = append(seen[key], p.Name)
	}
	var issues []Issue
	for bind, names := range seen {
		if len(names) < 2 {
			continue
		}
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "duplicate-listen",
			Target:         bind,
			Message:        fmt.Sprintf("listen address is used by %d profiles (%s)", len(names), strings.Join(names, ", ")),
			Recommendation: "give each profile its own listen port; only one can run at a time",
		})
	}
	return issues
}

func ignoredAuthIssues(profiles []model.Profile) []Issue {
	var issues []Issue
	for _, p := range profiles {
		if p.Username == "" && p.Password == "" {
			continue
		}
		if p.Type == model.ProfileForward || p.Type == model.ProfileHTTP {
			continue
		}
		issues = append(issues, Issue{
			Severity:       SeverityLow,
			Check:          "ignored-auth",
			Target:         p.Name,
			Message:        fmt.Sprintf("credentials are not applied to %s profiles", p.Type),
			Recommendation: "clear the username and password or switch to a forward/http profile",
		})
	}
	return issues
}

func mappingIssues(mappings []model.HostMapping) []Issue {
	var issues []Issue
	for _, m := range mappings {
		if m.Active && m.Protocol == model.ProtocolTCP {
			issues = append(issues, Issue{
				Severity:       SeverityLow,
				Check:          "tcp-mapping",
				Target:         m.Hostname,
				Message:        "tcp mappings are not served by the host router",
				Recommendation: "use an http or https mapping, or a tcp profile",
			})
		}
	}
	return issues
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
