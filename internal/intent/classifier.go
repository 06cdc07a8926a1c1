// Package intent classifies chat messages into coarse intents using an
// ordered catalog of phrase, regex and keyword rules.
package intent

import (
	_ "embed"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/rules"
)

//go:embed rules.yaml
var defaultCatalog []byte

// Confidence levels outside the catalog.
const (
	// ExactConfidence is assigned when the message echoes a menu option.
	ExactConfidence = 1.0
	// PageConfidence is assigned when only the page context suggests an intent.
	PageConfidence = 0.45
	// UnknownConfidence is assigned to non-empty messages that match nothing.
	UnknownConfidence = 0.1
)

// Rule kinds.
const (
	KindPhrase  = "phrase"
	KindRegex   = "regex"
	KindKeyword = "keyword"
)

// Catalog is the YAML rule catalog.
type Catalog struct {
	Options []OptionSpec `yaml:"options"`
	Pages   []PageSpec   `yaml:"pages"`
	Rules   []RuleSpec   `yaml:"rules"`
}

// OptionSpec is a menu option whose label, when echoed back, selects the intent.
type OptionSpec struct {
	Intent string `yaml:"intent"`
	Label  string `yaml:"label"`
}

// PageSpec maps a page path prefix to a fallback intent.
type PageSpec struct {
	Prefix string `yaml:"prefix"`
	Intent string `yaml:"intent"`
}

// RuleSpec is one declarative matching rule.
type RuleSpec struct {
	Name       string   `yaml:"name"`
	Intent     string   `yaml:"intent"`
	Kind       string   `yaml:"kind"`
	Confidence float64  `yaml:"confidence"`
	Phrases    []string `yaml:"phrases"`
	Pattern    string   `yaml:"pattern"`
	Keywords   []string `yaml:"keywords"`
	Base       float64  `yaml:"base"`
	Bonus      float64  `yaml:"bonus"`
	Max        float64  `yaml:"max"`
	MinHits    int      `yaml:"min_hits"`
}

// Classifier maps messages to intents. It is immutable and safe for
// concurrent use.
type Classifier struct {
	rules   []rules.Rule[message, domain.ClassifiedIntent]
	echoes  map[string]domain.Intent
	options []domain.Option
	pages   []PageSpec
}

// message is a chat message prepared for matching.
type message struct {
	// padded is the normalized text with a leading and trailing space so
	// whole-word lookups are plain substring checks.
	padded string
	lower  string
}

func newMessage(text string) message {
	return message{
		padded: " " + Normalize(text) + " ",
		lower:  strings.ToLower(strings.TrimSpace(text)),
	}
}

func (m message) has(term string) bool {
	return strings.Contains(m.padded, " "+term+" ")
}

var (
	defaultOnce       sync.Once
	defaultClassifier *Classifier
	defaultErr        error
)

// Default returns the classifier built from the embedded catalog.
func Default() (*Classifier, error) {
	defaultOnce.Do(func() {
		defaultClassifier, defaultErr = Load(defaultCatalog)
	})
	return defaultClassifier, defaultErr
}

// MustDefault is like Default but panics if the embedded catalog is invalid.
func MustDefault() *Classifier {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("intent: load embedded catalog: %v", err))
	}
	return c
}

// Load parses a YAML catalog and builds a classifier from it.
func Load(data []byte) (*Classifier, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(cat)
}

// New builds a classifier from a parsed catalog.
func New(cat Catalog) (*Classifier, error) {
	c := &Classifier{
		echoes: make(map[string]domain.Intent),
		pages:  make([]PageSpec, 0, len(cat.Pages)),
	}

	for _, in := range domain.KnownIntents {
		c.echoes[Normalize(string(in))] = in
	}
	for _, o := range cat.Options {
		in, ok := domain.ParseIntent(o.Intent)
		if !ok {
			return nil, fmt.Errorf("option %q: unknown intent %q", o.Label, o.Intent)
		}
		c.echoes[Normalize(o.Label)] = in
		c.options = append(c.options, domain.Option{Intent: in, Label: o.Label})
	}
	for _, p := range cat.Pages {
		if _, ok := domain.ParseIntent(p.Intent); !ok {
			return nil, fmt.Errorf("page %q: unknown intent %q", p.Prefix, p.Intent)
		}
		c.pages = append(c.pages, p)
	}
	for i, spec := range cat.Rules {
		r, err := compileRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, spec.Name, err)
		}
		c.rules = append(c.rules, r)
	}
	return c, nil
}

func compileRule(spec RuleSpec) (rules.Rule[message, domain.ClassifiedIntent], error) {
	var zero rules.Rule[message, domain.ClassifiedIntent]

	in, ok := domain.ParseIntent(spec.Intent)
	if !ok {
		return zero, fmt.Errorf("unknown intent %q", spec.Intent)
	}
	if spec.Name == "" {
		spec.Name = spec.Intent + "_" + spec.Kind
	}
	verdict := func(conf float64) domain.ClassifiedIntent {
		return domain.ClassifiedIntent{Intent: in, Confidence: round2(conf), Rule: spec.Name}
	}

	switch spec.Kind {
	case KindPhrase:
		if len(spec.Phrases) == 0 {
			return zero, fmt.Errorf("phrase rule without phrases")
		}
		phrases := make([]string, 0, len(spec.Phrases))
		for _, p := range spec.Phrases {
			phrases = append(phrases, Normalize(p))
		}
		return rules.Rule[message, domain.ClassifiedIntent]{
			Name: spec.Name,
			Eval: func(m message) (domain.ClassifiedIntent, bool) {
				for _, p := range phrases {
					if m.has(p) {
						return verdict(spec.Confidence), true
					}
				}
				return domain.ClassifiedIntent{}, false
			},
		}, nil

	case KindRegex:
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return zero, fmt.Errorf("compile pattern: %w", err)
		}
		return rules.Rule[message, domain.ClassifiedIntent]{
			Name: spec.Name,
			Eval: func(m message) (domain.ClassifiedIntent, bool) {
				if re.MatchString(m.lower) {
					return verdict(spec.Confidence), true
				}
				return domain.ClassifiedIntent{}, false
			},
		}, nil

	case KindKeyword:
		if len(spec.Keywords) == 0 {
			return zero, fmt.Errorf("keyword rule without keywords")
		}
		keywords := make([]string, 0, len(spec.Keywords))
		for _, k := range spec.Keywords {
			keywords = append(keywords, Normalize(k))
		}
		minHits := max(spec.MinHits, 1)
		ceiling := spec.Max
		if ceiling <= 0 {
			ceiling = spec.Base
		}
		return rules.Rule[message, domain.ClassifiedIntent]{
			Name: spec.Name,
			Eval: func(m message) (domain.ClassifiedIntent, bool) {
				hits := 0
				for _, k := range keywords {
					if m.has(k) {
						hits++
					}
				}
				if hits < minHits {
					return domain.ClassifiedIntent{}, false
				}
				conf := spec.Base + spec.Bonus*float64(hits-1)
				return verdict(math.Min(conf, ceiling)), true
			},
		}, nil

	default:
		return zero, fmt.Errorf("unknown rule kind %q", spec.Kind)
	}
}

// Classify returns the intent of message. It never fails: messages that match
// nothing resolve to unknown.
func (c *Classifier) Classify(text, page string) domain.ClassifiedIntent {
	if strings.TrimSpace(text) == "" {
		return domain.ClassifiedIntent{Intent: domain.IntentUnknown, Confidence: 0, Rule: "empty"}
	}

	m := newMessage(text)
	if in, ok := c.echoes[strings.TrimSpace(m.padded)]; ok {
		return domain.ClassifiedIntent{Intent: in, Confidence: ExactConfidence, Rule: "option_echo"}
	}

	if match, ok := rules.First(c.rules, m); ok {
		return match.Value
	}

	if in, ok := c.pageIntent(page); ok {
		return domain.ClassifiedIntent{Intent: in, Confidence: PageConfidence, Rule: "page_context"}
	}
	return domain.ClassifiedIntent{Intent: domain.IntentUnknown, Confidence: UnknownConfidence, Rule: "no_match"}
}

func (c *Classifier) pageIntent(page string) (domain.Intent, bool) {
	page = strings.ToLower(strings.TrimSpace(page))
	if page == "" {
		return "", false
	}
	for _, p := range c.pages {
		if strings.HasPrefix(page, p.Prefix) {
			in, _ := domain.ParseIntent(p.Intent)
			return in, true
		}
	}
	return "", false
}

// Options returns the menu options declared in the catalog.
func (c *Classifier) Options() []domain.Option {
	return append([]domain.Option(nil), c.options...)
}

// Label returns the menu label for an intent, or the intent tag itself.
func (c *Classifier) Label(in domain.Intent) string {
	for _, o := range c.options {
		if o.Intent == in {
			return o.Label
		}
	}
	return string(in)
}

// Normalize lowercases text and collapses everything that is not a letter or
// digit into single spaces.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
