package anonymizer

// Mapping records which original value produced which placeholder token, one
// table per PII category. Entries are insert-only for the lifetime of the
// Engine that owns the Mapping: once a value has been tokenized, its token
// never changes.
type Mapping struct {
	Usernames     map[string]string `json:"usernames"`
	ComputerNames map[string]string `json:"computerNames"`
	IPAddresses   map[string]string `json:"ipAddresses"`
	Emails        map[string]string `json:"emails"`
	Paths         map[string]string `json:"paths"`
}

func NewMapping() *Mapping {
	return &Mapping{
		Usernames:     make(map[string]string),
		ComputerNames: make(map[string]string),
		IPAddresses:   make(map[string]string),
		Emails:        make(map[string]string),
		Paths:         make(map[string]string),
	}
}

// normalizeTables replaces nil tables with empty ones so a Mapping decoded
// from a partial file is always safe to use.
func (m *Mapping) normalizeTables() {
	if m.Usernames == nil {
		m.Usernames = make(map[string]string)
	}
	if m.ComputerNames == nil {
		m.ComputerNames = make(map[string]string)
	}
	if m.IPAddresses == nil {
		m.IPAddresses = make(map[string]string)
	}
	if m.Emails == nil {
		m.Emails = make(map[string]string)
	}
	if m.Paths == nil {
		m.Paths = make(map[string]string)
	}
}

func (m *Mapping) Clone() *Mapping {
	out := NewMapping()
	for k, v := range m.Usernames {
		out.Usernames[k] = v
	}
	for k, v := range m.ComputerNames {
		out.ComputerNames[k] = v
	}
	for k, v := range m.IPAddresses {
		out.IPAddresses[k] = v
	}
	for k, v := range m.Emails {
		out.Emails[k] = v
	}
	for k, v := range m.Paths {
		out.Paths[k] = v
	}
	return out
}

func (m *Mapping) table(cat Category) map[string]string {
	switch cat {
	case CategoryUser:
		return m.Usernames
	case CategoryComputer:
		return m.ComputerNames
	case CategoryIP:
		return m.IPAddresses
	case CategoryEmail:
		return m.Emails
	case CategoryPath:
		return m.Paths
	}
	return nil
}
