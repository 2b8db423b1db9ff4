package anonymizer

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Policy tunes the category detectors. Exempt principals are well-known
// machine accounts that carry no individual identity and must never be
// tokenized; pseudo accounts are the shared profile directories under
// <drive>:\Users that stay untouched.
type Policy struct {
	ExemptPrincipals []string `yaml:"exempt_principals" json:"exempt_principals"`
	ExemptHostWords  []string `yaml:"exempt_host_words" json:"exempt_host_words"`
	PseudoAccounts   []string `yaml:"pseudo_accounts" json:"pseudo_accounts"`
}

func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultPolicy(), err
	}

	var policy Policy
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return Policy{}, err
	}

	if len(policy.ExemptPrincipals) == 0 && len(policy.PseudoAccounts) == 0 {
		return Policy{}, errors.New("no detector policy entries configured")
	}

	if len(policy.ExemptHostWords) == 0 {
		policy.ExemptHostWords = DefaultPolicy().ExemptHostWords
	}
	if len(policy.PseudoAccounts) == 0 {
		policy.PseudoAccounts = DefaultPolicy().PseudoAccounts
	}

	return policy, nil
}

func DefaultPolicy() Policy {
	return Policy{
		ExemptPrincipals: []string{
			`NT AUTHORITY\SYSTEM`,
			`NT AUTHORITY\LOCAL SERVICE`,
			`NT AUTHORITY\NETWORK SERVICE`,
			`NT AUTHORITY\ANONYMOUS LOGON`,
			"SYSTEM",
			"LOCAL SERVICE",
			"NETWORK SERVICE",
		},
		ExemptHostWords: []string{
			"SHA", "SHA1", "SHA256", "SHA512", "MD5",
			"UTF", "UTF8", "UTF16", "BASE64",
			"HTTP", "HTTP2", "IPV4", "IPV6",
			"TLS", "TLS12", "TLS13",
			"WIN32", "WIN64", "X509", "X64", "X86",
			"CVE", "KB", "RFC", "ISO",
		},
		PseudoAccounts: []string{
			"Public",
			"Default",
			"Default User",
			"All Users",
		},
	}
}
