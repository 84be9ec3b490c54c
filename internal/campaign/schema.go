package campaign

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	requiredCampaignFields = []string{"id", "name", "description", "region", "markets", "target", "schedule", "message"}
	requiredMarketFields   = []string{"market_id", "country", "language"}
	requiredProductFields  = []string{"id", "name", "category", "assets"}
	requiredAssetFields    = []string{"product_image", "logo"}
	requiredCreative       = []string{"aspect_ratios", "style", "text_overlay"}
	overlayFlags           = []string{"include_message", "include_cta", "include_logo"}

	ratioPattern = regexp.MustCompile(`^[1-9][0-9]*x[1-9][0-9]*$`)

	assetExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".svg": true}
)

// checker accumulates every violation found while walking a document.
type checker struct {
	errs []string
}

func (c *checker) add(format string, args ...interface{}) {
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

func (c *checker) missing(path string) {
	c.add("Missing required field: %s", path)
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// lookup returns the value node for key in a mapping node.
func lookup(m *yaml.Node, key string) (*yaml.Node, bool) {
	m = deref(m)
	if m == nil || m.Kind != yaml.MappingNode {
		return nil, false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return deref(m.Content[i+1]), true
		}
	}
	return nil, false
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

func isMap(n *yaml.Node) bool { return n != nil && n.Kind == yaml.MappingNode }
func isSeq(n *yaml.Node) bool { return n != nil && n.Kind == yaml.SequenceNode }

func isString(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str"
}

func isBool(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() == "!!bool"
}

// scalarText is the value of any non-null scalar, so numeric ids like 2025
// count as present.
func scalarText(n *yaml.Node) (string, bool) {
	if n == nil || n.Kind != yaml.ScalarNode || isNull(n) {
		return "", false
	}
	return strings.TrimSpace(n.Value), true
}

// requireText checks that key exists on m and holds a non-empty scalar.
func (c *checker) requireText(m *yaml.Node, key, path string) (string, bool) {
	v, ok := lookup(m, key)
	if !ok {
		c.missing(path)
		return "", false
	}
	text, ok := scalarText(v)
	if !ok || text == "" {
		c.add("%s cannot be empty", path)
		return "", false
	}
	return text, true
}

// requireSegment is requireText for values that become directory names.
func (c *checker) requireSegment(m *yaml.Node, key, path string) (string, bool) {
	text, ok := c.requireText(m, key, path)
	if !ok {
		return "", false
	}
	if strings.ContainsAny(text, `/\`) || text == "." || text == ".." {
		c.add("%s must not contain path separators: '%s'", path, text)
		return "", false
	}
	return text, true
}

func (c *checker) optionalString(m *yaml.Node, key, path string) {
	v, ok := lookup(m, key)
	if !ok || isNull(v) {
		return
	}
	if !isString(v) {
		c.add("%s must be a string", path)
	}
}

// checkDocument walks root and returns every violation in document order.
func checkDocument(root *yaml.Node) []string {
	c := &checker{}
	c.checkCampaign(root)
	c.checkProducts(root)
	c.checkCreative(root)
	c.checkComplianceList(root)
	return c.errs
}

func (c *checker) checkCampaign(root *yaml.Node) {
	camp, ok := lookup(root, "campaign")
	if !ok {
		c.add("Missing 'campaign' section")
		return
	}
	if !isMap(camp) {
		c.add("'campaign' must be a dictionary")
		return
	}

	for _, field := range requiredCampaignFields {
		if _, ok := lookup(camp, field); !ok {
			c.missing("campaign." + field)
		}
	}

	if _, ok := lookup(camp, "id"); ok {
		c.requireSegment(camp, "id", "campaign.id")
	}
	for _, field := range []string{"name", "description", "region"} {
		if _, ok := lookup(camp, field); ok {
			c.requireText(camp, field, "campaign."+field)
		}
	}

	if markets, ok := lookup(camp, "markets"); ok {
		c.checkMarkets(markets)
	}

	if target, ok := lookup(camp, "target"); ok {
		if !isMap(target) {
			c.add("campaign.target must be a dictionary")
		} else {
			c.requireText(target, "audience", "campaign.target.audience")
		}
	}

	if schedule, ok := lookup(camp, "schedule"); ok {
		c.checkSchedule(schedule)
	}

	if msg, ok := lookup(camp, "message"); ok {
		if !isMap(msg) {
			c.add("campaign.message must be a dictionary")
		} else {
			c.requireText(msg, "primary", "campaign.message.primary")
			c.optionalString(msg, "secondary", "campaign.message.secondary")
			c.requireText(msg, "cta", "campaign.message.cta")
		}
	}
}

func (c *checker) checkMarkets(markets *yaml.Node) {
	if !isSeq(markets) {
		c.add("campaign.markets must be a list")
		return
	}
	if len(markets.Content) == 0 {
		c.add("campaign.markets must contain at least one market")
		return
	}

	seen := make(map[string]int)
	for i, m := range markets.Content {
		m = deref(m)
		path := fmt.Sprintf("campaign.markets[%d]", i)
		if !isMap(m) {
			c.add("%s must be a dictionary", path)
			continue
		}
		for _, field := range requiredMarketFields {
			if field == "market_id" {
				id, ok := c.requireSegment(m, field, path+"."+field)
				if !ok {
					continue
				}
				if first, dup := seen[id]; dup {
					c.add("Duplicate market_id '%s' at %s (first declared at campaign.markets[%d])", id, path, first)
				} else {
					seen[id] = i
				}
				continue
			}
			c.requireText(m, field, path+"."+field)
		}
	}
}

func (c *checker) checkSchedule(schedule *yaml.Node) {
	if !isMap(schedule) {
		c.add("campaign.schedule must be a dictionary")
		return
	}

	parse := func(key string) (time.Time, bool) {
		path := "campaign.schedule." + key
		v, ok := lookup(schedule, key)
		if !ok {
			c.missing(path)
			return time.Time{}, false
		}
		text, _ := scalarText(v)
		t, err := time.Parse(DateLayout, text)
		if err != nil {
			c.add("Invalid date format for %s: %s (expected YYYY-MM-DD)", path, text)
			return time.Time{}, false
		}
		return t, true
	}

	start, okStart := parse("start_date")
	end, okEnd := parse("end_date")
	if okStart && okEnd && end.Before(start) {
		c.add("campaign.schedule.end_date must not be before start_date")
	}
}

func (c *checker) checkProducts(root *yaml.Node) {
	products, ok := lookup(root, "products")
	if !ok {
		c.add("Missing 'products' section")
		return
	}
	if !isSeq(products) {
		c.add("'products' must be a list")
		return
	}
	if len(products.Content) == 0 {
		c.add("'products' must contain at least one product")
		return
	}

	seen := make(map[string]int)
	for i, p := range products.Content {
		p = deref(p)
		path := fmt.Sprintf("products[%d]", i)
		if !isMap(p) {
			c.add("%s must be a dictionary", path)
			continue
		}

		for _, field := range requiredProductFields {
			if _, ok := lookup(p, field); !ok {
				c.missing(path + "." + field)
			}
		}
		if _, ok := lookup(p, "id"); ok {
			if id, ok := c.requireSegment(p, "id", path+".id"); ok {
				if first, dup := seen[id]; dup {
					c.add("Duplicate product id '%s' at %s (first declared at products[%d])", id, path, first)
				} else {
					seen[id] = i
				}
			}
		}
		for _, field := range []string{"name", "category"} {
			if _, ok := lookup(p, field); ok {
				c.requireText(p, field, path+"."+field)
			}
		}
		c.optionalString(p, "description", path+".description")
		c.optionalString(p, "message", path+".message")

		if assets, ok := lookup(p, "assets"); ok {
			c.checkAssets(assets, path+".assets")
		}
	}
}

func (c *checker) checkAssets(assets *yaml.Node, path string) {
	if !isMap(assets) {
		c.add("%s must be a dictionary", path)
		return
	}

	for _, field := range requiredAssetFields {
		fpath := path + "." + field
		v, ok := lookup(assets, field)
		switch {
		case !ok:
			c.missing(fpath)
		case isNull(v):
			c.add("%s is required and cannot be null", fpath)
		case !isString(v):
			c.add("%s must be a string", fpath)
		case strings.TrimSpace(v.Value) == "":
			c.add("%s cannot be empty", fpath)
		default:
			c.checkExtension(v.Value, fpath)
		}
	}

	hero, ok := lookup(assets, "hero_image")
	if !ok || isNull(hero) {
		return
	}
	if !isString(hero) {
		c.add("%s.hero_image must be a string or null", path)
		return
	}
	if strings.TrimSpace(hero.Value) != "" {
		c.checkExtension(hero.Value, path+".hero_image")
	}
}

func (c *checker) checkExtension(filename, path string) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !assetExtensions[ext] {
		c.add("%s has unsupported format '%s' (expected png, jpg, jpeg or svg)", path, filename)
	}
}

func (c *checker) checkCreative(root *yaml.Node) {
	creative, ok := lookup(root, "creative")
	if !ok {
		c.add("Missing 'creative' section")
		return
	}
	if !isMap(creative) {
		c.add("'creative' must be a dictionary")
		return
	}

	for _, field := range requiredCreative {
		if _, ok := lookup(creative, field); !ok {
			c.missing("creative." + field)
		}
	}

	if ratios, ok := lookup(creative, "aspect_ratios"); ok {
		c.checkRatios(ratios)
	}

	if style, ok := lookup(creative, "style"); ok {
		c.checkStyle(style)
	}

	if overlay, ok := lookup(creative, "text_overlay"); ok {
		if !isMap(overlay) {
			c.add("creative.text_overlay must be a dictionary")
		} else {
			for _, flag := range overlayFlags {
				path := "creative.text_overlay." + flag
				v, ok := lookup(overlay, flag)
				if !ok {
					c.missing(path)
				} else if !isBool(v) {
					c.add("%s must be a boolean", path)
				}
			}
		}
	}
}

func (c *checker) checkRatios(ratios *yaml.Node) {
	if !isSeq(ratios) {
		c.add("creative.aspect_ratios must be a list")
		return
	}
	if len(ratios.Content) == 0 {
		c.add("creative.aspect_ratios must contain at least one ratio")
		return
	}
	seen := make(map[string]bool)
	for i, r := range ratios.Content {
		r = deref(r)
		path := fmt.Sprintf("creative.aspect_ratios[%d]", i)
		if !isString(r) || !ratioPattern.MatchString(r.Value) {
			c.add("%s must be a WxH ratio such as 1x1, got '%s'", path, r.Value)
			continue
		}
		if seen[r.Value] {
			c.add("Duplicate aspect ratio '%s' at %s", r.Value, path)
		}
		seen[r.Value] = true
	}
}

func (c *checker) checkStyle(style *yaml.Node) {
	if !isMap(style) {
		c.add("creative.style must be a dictionary")
		return
	}
	c.requireText(style, "mood", "creative.style.mood")

	colors, ok := lookup(style, "colors")
	switch {
	case !ok:
		c.missing("creative.style.colors")
	case !isSeq(colors):
		c.add("creative.style.colors must be a list")
	case len(colors.Content) == 0:
		c.add("creative.style.colors must contain at least one color")
	default:
		for i, col := range colors.Content {
			if text, ok := scalarText(deref(col)); !ok || text == "" {
				c.add("creative.style.colors[%d] cannot be empty", i)
			}
		}
	}

	c.optionalString(style, "setting", "creative.style.setting")
}

func (c *checker) checkComplianceList(root *yaml.Node) {
	checks, ok := lookup(root, "compliance_checks")
	if !ok || isNull(checks) {
		return
	}
	if !isSeq(checks) {
		c.add("'compliance_checks' must be a list")
		return
	}
	for i, n := range checks.Content {
		n = deref(n)
		if !isString(n) || strings.TrimSpace(n.Value) == "" {
			c.add("compliance_checks[%d] must be a non-empty string", i)
		}
	}
}
