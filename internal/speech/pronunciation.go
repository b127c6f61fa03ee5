package speech

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TermGroup is a named set of spellings and how they should be read aloud.
type TermGroup struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Terms       map[string]string `yaml:"terms"`
}

// DictionaryFile is the top-level YAML structure.
type DictionaryFile struct {
	Groups []TermGroup `yaml:"groups"`
}

// Dictionary rewrites abbreviations and proper nouns into their spoken form.
type Dictionary struct {
	byName map[string]*TermGroup
	order  []string
	keys   []string // longest first
	spoken map[string]string
}

// DefaultGroups is used when no dictionary file is configured.
var DefaultGroups = []TermGroup{
	{
		Name:        "institutions",
		Description: "Universities and research institutes",
		Terms: map[string]string{
			"KAIST": "카이스트",
			"kaist": "카이스트",
			"Kaist": "카이스트",
			"KIST":  "키스트",
			"ETRI":  "이티알아이",
			"MIT":   "엠아이티",
		},
	},
	{
		Name:        "companies",
		Description: "Company names",
		Terms: map[string]string{
			"LIG Nex1": "엘아이지 넥스원",
			"LIG넥스원":   "엘아이지 넥스원",
			"LIGNex1":  "엘아이지 넥스원",
			"LIG":      "엘아이지",
		},
	},
	{
		Name:        "technology",
		Description: "Technical abbreviations",
		Terms: map[string]string{
			"ROS":  "로스",
			"AI":   "에이아이",
			"ML":   "엠엘",
			"GPS":  "지피에스",
			"SLAM": "슬램",
			"IMU":  "아이엠유",
			"UAV":  "유에이비",
			"UGV":  "유지비",
			"IoT":  "아이오티",
		},
	},
	{
		Name:        "languages",
		Description: "Programming languages",
		Terms: map[string]string{
			"Python": "파이썬",
			"C++":    "씨플플",
			"C#":     "씨샵",
		},
	},
}

// NewDictionary builds a dictionary from groups. Later groups win on duplicate terms.
func NewDictionary(groups []TermGroup) *Dictionary {
	d := &Dictionary{
		byName: make(map[string]*TermGroup, len(groups)),
		spoken: make(map[string]string),
	}
	for i := range groups {
		g := &groups[i]
		if _, seen := d.byName[g.Name]; !seen {
			d.order = append(d.order, g.Name)
		}
		d.byName[g.Name] = g
		for written, said := range g.Terms {
			if written == "" {
				continue
			}
			d.spoken[written] = said
		}
	}
	for k := range d.spoken {
		d.keys = append(d.keys, k)
	}
	sort.Slice(d.keys, func(i, j int) bool {
		if len(d.keys[i]) != len(d.keys[j]) {
			return len(d.keys[i]) > len(d.keys[j])
		}
		return d.keys[i] < d.keys[j]
	})
	return d
}

// LoadDictionary reads the YAML file at path.
// An empty path or a missing file yields the built-in dictionary.
func LoadDictionary(path string) (*Dictionary, error) {
	if path == "" {
		return NewDictionary(DefaultGroups), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDictionary(DefaultGroups), nil
		}
		return nil, err
	}

	var f DictionaryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return NewDictionary(f.Groups), nil
}

// Group returns a term group by name.
func (d *Dictionary) Group(name string) (*TermGroup, bool) {
	g, ok := d.byName[name]
	return g, ok
}

// Groups returns all groups in definition order.
func (d *Dictionary) Groups() []*TermGroup {
	out := make([]*TermGroup, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.byName[name])
	}
	return out
}

// Apply replaces every known term in text, longest terms first so that
// "LIG Nex1" is read as a whole before "LIG".
func (d *Dictionary) Apply(text string) string {
	if d == nil || len(d.keys) == 0 {
		return text
	}
	pairs := make([]string, 0, len(d.keys)*2)
	for _, k := range d.keys {
		pairs = append(pairs, k, d.spoken[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
