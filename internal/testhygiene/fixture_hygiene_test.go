package testhygiene

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Shapes of live credentials. Fixture tokens are short and obviously fake.
	credentialPatterns = map[string]*regexp.Regexp{
		"anthropic key": regexp.MustCompile(`sk-ant-(?:api|admin)\d{2}-[A-Za-z0-9_-]{80,}`),
		"openai key":    regexp.MustCompile(`sk-(?:proj|svcacct)-[A-Za-z0-9_-]{40,}`),
		"github token":  regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),
		"aws key id":    regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	}
	disallowedFixtureHosts = []string{
		"open.bigmodel.cn",
		"dashscope.aliyuncs.com",
	}
)

func TestFixtureHygiene_NoLiveCredentials(t *testing.T) {
	repoRoot := findRepoRoot(t)

	var findings []string
	err := filepath.WalkDir(repoRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(repoRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			base := filepath.Base(path)
			switch base {
			case ".git", ".idea", ".vscode", "node_modules":
				return filepath.SkipDir
			}
			if path != repoRoot && strings.HasPrefix(base, "_") {
				return filepath.SkipDir
			}
			return nil
		}

		if !shouldScanFixtureFile(rel) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := string(raw)
		lower := strings.ToLower(content)

		for kind, pattern := range credentialPatterns {
			if pattern.MatchString(content) {
				findings = append(findings, fmt.Sprintf("%s: contains what looks like a live %s", rel, kind))
			}
		}

		for _, host := range disallowedFixtureHosts {
			if strings.Contains(lower, host) {
				findings = append(findings, fmt.Sprintf("%s: contains real provider host %q; use example.invalid fixture URLs", rel, host))
			}
		}

		for _, email := range emailPattern.FindAllString(content, -1) {
			domain := emailDomain(email)
			if !isAllowedFixtureEmailDomain(domain) {
				findings = append(findings, fmt.Sprintf("%s: contains non-synthetic email %q", rel, email))
			}
		}

		return nil
	})
	if err != nil {
		t.Fatalf("fixture hygiene scan failed: %v", err)
	}

	if len(findings) > 0 {
		t.Fatalf("fixture hygiene violations:\n%s", strings.Join(findings, "\n"))
	}
}

func shouldScanFixtureFile(rel string) bool {
	if strings.HasPrefix(rel, "internal/testhygiene/") {
		return false
	}
	if strings.HasSuffix(rel, "_test.go") {
		return true
	}
	if strings.HasSuffix(rel, ".yaml") && strings.Contains(rel, "/testdata/") {
		return true
	}
	if strings.Contains(rel, "/testdata/") {
		return true
	}
	return false
}

func findRepoRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find repo root from %q", dir)
		}
		dir = parent
	}
}

func emailDomain(email string) string {
	parts := strings.SplitN(strings.ToLower(email), "@", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

func isAllowedFixtureEmailDomain(domain string) bool {
	switch domain {
	case "example.com", "example.org", "example.net", "example.test", "example.invalid", "localhost", "test.local":
		return true
	default:
		return strings.HasSuffix(domain, ".example.invalid")
	}
}

func TestCredentialPatterns(t *testing.T) {
	live := "sk-ant-api03-" + strings.Repeat("Ab3_", 24)
	if !credentialPatterns["anthropic key"].MatchString(live) {
		t.Errorf("anthropic pattern missed a live-shaped key")
	}
	for _, fixture := range []string{"sk-ant-REDACTED", "sk-ant-first-0000000000", "keyring:work-backup"} {
		for kind, pattern := range credentialPatterns {
			if pattern.MatchString(fixture) {
				t.Errorf("%s pattern flagged fixture %q", kind, fixture)
			}
		}
	}
}
