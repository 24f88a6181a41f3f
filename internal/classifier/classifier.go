// Package classifier maps free-text product names to a product type tag.
//
// Matching is a first-hit scan over an ordered rule list: the lower-cased name
// is tested against each rule's keywords by substring, and the first rule
// with a hit decides the tag. More specific rules sit before broader ones
// (Smartwatch before Montre), so the order of the list is part of its meaning.
package classifier

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tag is a product type label. It is computed from a name and never stored.
type Tag string

const (
	TShirt     Tag = "T-Shirt"
	Chemise    Tag = "Chemise"
	Pull       Tag = "Pull"
	Sweat      Tag = "Sweat"
	Veste      Tag = "Veste"
	Pantalon   Tag = "Pantalon"
	Jupe       Tag = "Jupe"
	Robe       Tag = "Robe"
	Pyjama     Tag = "Pyjama"
	Sneakers   Tag = "Sneakers"
	Baskets    Tag = "Baskets"
	Sandales   Tag = "Sandales"
	Bottes     Tag = "Bottes"
	Mocassins  Tag = "Mocassins"
	Sac        Tag = "Sac"
	Casquette  Tag = "Casquette"
	Ceinture   Tag = "Ceinture"
	Echarpe    Tag = "Écharpe"
	Gants      Tag = "Gants"
	Collier    Tag = "Collier"
	Bracelet   Tag = "Bracelet"
	Montre     Tag = "Montre"
	Smartwatch Tag = "Smartwatch"
	Parfum     Tag = "Parfum"
	Creme      Tag = "Crème"
	Lotion     Tag = "Lotion"
	GelDouche  Tag = "Gel Douche"
	Deodorant  Tag = "Déodorant"
	Kids       Tag = "Kids"
	Jouet      Tag = "Jouet"
	Jeu        Tag = "Jeu"
	Voiture    Tag = "Voiture"
	Puzzle     Tag = "Puzzle"

	// DefaultFallback is returned for names no rule recognizes.
	DefaultFallback Tag = "Autre"
)

// Rule assigns Tag to any name containing one of Keywords.
type Rule struct {
	Tag      Tag      `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
}

// DefaultRules returns the built-in priority list. The returned slice is a
// fresh copy and may be modified by the caller.
func DefaultRules() []Rule {
	rules := []Rule{
		{Smartwatch, []string{"smartwatch", "smart watch"}},

		{TShirt, []string{"t-shirt", "tee-shirt", "tshirt"}},
		{Pull, []string{"pull", "pullover"}},
		{Chemise, []string{"chemise", "shirt"}},
		{Sweat, []string{"sweat", "sweatshirt"}},
		{Veste, []string{"veste", "jacket"}},
		{Pantalon, []string{"pantalon", "jean", "trouser", "chino"}},
		{Jupe, []string{"jupe", "skirt"}},
		{Robe, []string{"robe", "dress"}},
		{Pyjama, []string{"pyjama"}},

		{Sneakers, []string{"sneakers", "sneaker"}},
		{Baskets, []string{"baskets", "basket"}},
		{Sandales, []string{"sandales", "sandale"}},
		{Bottes, []string{"bottes", "botte", "boots"}},
		{Mocassins, []string{"mocassins", "mocassin"}},

		{Sac, []string{"sac", "bag"}},
		{Casquette, []string{"casquette", "cap"}},
		{Ceinture, []string{"ceinture", "belt"}},
		{Echarpe, []string{"écharpe", "scarf"}},
		{Gants, []string{"gants", "gloves"}},
		{Collier, []string{"collier", "necklace"}},
		{Bracelet, []string{"bracelet"}},

		{Montre, []string{"montre", "watch"}},

		{Parfum, []string{"parfum", "perfume"}},
		{Creme, []string{"crème", "cream"}},
		{Lotion, []string{"lotion"}},
		{GelDouche, []string{"gel douche", "body wash"}},
		{Deodorant, []string{"déodorant", "deodorant"}},

		{Kids, []string{"kids", "enfant"}},
		{Jeu, []string{"jeu de société", "jeu"}},
		{Voiture, []string{"voiture"}},
		{Puzzle, []string{"puzzle"}},
		{Jouet, []string{"jouet", "toy"}},
	}
	return rules
}

// Classifier is immutable once built and safe for concurrent use.
type Classifier struct {
	rules    []Rule
	fallback Tag
}

// New builds a classifier over rules, in order. Keywords are lower-cased and
// blank ones dropped. An empty fallback means DefaultFallback.
func New(rules []Rule, fallback Tag) *Classifier {
	if fallback == "" {
		fallback = DefaultFallback
	}
	c := &Classifier{
		rules:    make([]Rule, 0, len(rules)),
		fallback: fallback,
	}
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				kws = append(kws, kw)
			}
		}
		if r.Tag == "" || len(kws) == 0 {
			continue
		}
		c.rules = append(c.rules, Rule{Tag: r.Tag, Keywords: kws})
	}
	return c
}

// Default is New(DefaultRules(), fallback).
func Default(fallback Tag) *Classifier {
	return New(DefaultRules(), fallback)
}

// Classify returns the tag of the first rule matching name, or the fallback.
func (c *Classifier) Classify(name string) Tag {
	lower := strings.ToLower(name)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Tag
			}
		}
	}
	return c.fallback
}

func (c *Classifier) Fallback() Tag {
	return c.fallback
}

// Tags lists every tag the classifier can return, in rule order, fallback last.
func (c *Classifier) Tags() []Tag {
	seen := make(map[Tag]bool, len(c.rules)+1)
	tags := make([]Tag, 0, len(c.rules)+1)
	for _, r := range c.rules {
		if !seen[r.Tag] {
			seen[r.Tag] = true
			tags = append(tags, r.Tag)
		}
	}
	if !seen[c.fallback] {
		tags = append(tags, c.fallback)
	}
	return tags
}

// LoadRules decodes an ordered YAML rule list:
//
//	- tag: Smartwatch
//	  keywords: [smartwatch, smart watch]
func LoadRules(r io.Reader) ([]Rule, error) {
	var rules []Rule
	if err := yaml.NewDecoder(r).Decode(&rules); err != nil {
		return nil, fmt.Errorf("decode classifier rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("decode classifier rules: no rules")
	}
	return rules, nil
}

func LoadRulesFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open classifier rules: %w", err)
	}
	defer f.Close()
	return LoadRules(f)
}
