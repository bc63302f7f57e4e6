package oracle

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"twc/config"
	"twc/css"
	"twc/style"
)

// InlineStashAttribute keeps element inline style while authored CSS is
// suppressed.
const InlineStashAttribute = "data-twc-inline-style"

// toggleCSS switches document stylesheets and inline styles of identified
// elements on or off, returns number of identified elements.
const toggleCSS = `(attr, stash, enabled) => {
	for (const s of document.styleSheets) {
		s.disabled = !enabled;
	}
	let count = 0;
	for (const el of document.querySelectorAll('[' + attr + ']')) {
		count++;
		if (enabled) {
			if (el.hasAttribute(stash)) {
				el.setAttribute('style', el.getAttribute(stash));
				el.removeAttribute(stash);
			}
		} else if (el.hasAttribute('style')) {
			el.setAttribute(stash, el.getAttribute('style'));
			el.removeAttribute('style');
		}
	}
	return count;
}`

// Chrome is Oracle backed by Chrome DevTools protocol. Browser is either
// launched locally or connected to with remote DevTools URL.
type Chrome struct {
	log  *zap.Logger
	cfg  *config.OracleConfig
	attr string

	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page

	mu    sync.Mutex
	url   string
	nodes map[style.Identity]proto.DOMNodeID
}

// NewChrome starts (or connects to) browser and opens single page which will
// be used for all render passes.
func NewChrome(ctx context.Context, cfg *config.OracleConfig, attr string, log *zap.Logger) (*Chrome, error) {
	c := &Chrome{log: log.Named("oracle"), cfg: cfg, attr: attr}

	var wsURL string
	if remote := cfg.RemoteURL.Reveal(); remote != "" {
		wsURL = remote
		c.log.Debug("Connecting to remote browser", zap.Stringer("url", cfg.RemoteURL))
	} else {
		l := launcher.New().Context(ctx).Headless(cfg.Headless)
		if cfg.BinPath != "" {
			l = l.Bin(cfg.BinPath)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("unable to launch browser: %w", err)
		}
		wsURL = u
		c.lnch = l
		c.log.Debug("Launched local browser", zap.String("url", wsURL), zap.Bool("headless", cfg.Headless))
	}

	c.browser = rod.New().ControlURL(wsURL)
	if err := c.browser.Connect(); err != nil {
		c.cleanup()
		return nil, fmt.Errorf("unable to connect to browser: %w", err)
	}

	var err error
	if cfg.Stealth {
		c.page, err = stealth.Page(c.browser)
	} else {
		c.page, err = c.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("unable to open page: %w", err), c.Close())
	}
	if err := (proto.DOMEnable{}).Call(c.page); err != nil {
		return nil, multierr.Append(fmt.Errorf("unable to enable DOM domain: %w", err), c.Close())
	}
	if err := (proto.CSSEnable{}).Call(c.page); err != nil {
		return nil, multierr.Append(fmt.Errorf("unable to enable CSS domain: %w", err), c.Close())
	}
	return c, nil
}

// Load navigates to url unless it is already loaded and switches authored CSS.
func (c *Chrome) Load(ctx context.Context, url string, cssEnabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if url != c.url {
		navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
		defer cancel()

		c.url, c.nodes = "", nil
		if err := c.page.Context(navCtx).Navigate(url); err != nil {
			return fmt.Errorf("unable to navigate to %s: %w", url, err)
		}
		if err := c.page.Context(navCtx).WaitLoad(); err != nil {
			return fmt.Errorf("unable to load %s: %w", url, err)
		}
		c.url = url
	}

	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()
	res, err := c.page.Context(qctx).Eval(toggleCSS, c.attr, InlineStashAttribute, cssEnabled)
	if err != nil {
		return fmt.Errorf("unable to switch authored CSS: %w", err)
	}
	c.log.Debug("Document loaded", zap.String("url", url), zap.Bool("css", cssEnabled), zap.Int("elements", res.Value.Int()))
	return nil
}

// Snapshot sets viewport and collects computed style of every identified
// element. Elements engine fails to report are skipped with a warning.
func (c *Chrome) Snapshot(ctx context.Context, vp Viewport) (style.Snapshot, error) {
	if err := c.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("unable to set viewport %s: %w", vp, err)
	}

	nodes, err := c.identified(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]style.Identity, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	records := make([]style.Record, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(max(c.cfg.Workers, 1))
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := c.computed(ctx, nodes[id])
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.log.Warn("Unable to capture computed style, skipping", zap.Stringer("identity", id), zap.Error(err))
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("snapshot interrupted: %w", err)
	}

	snap := make(style.Snapshot, len(ids))
	for i, id := range ids {
		if records[i] != nil {
			snap[id] = records[i]
		}
	}
	return snap, nil
}

// MatchedDeclarations returns declarations of regular (authored) rules
// matching element in the order engine reports them, followed by inline style
// which gets the highest rank.
func (c *Chrome) MatchedDeclarations(ctx context.Context, id style.Identity) ([]style.Declaration, error) {
	nodes, err := c.identified(ctx)
	if err != nil {
		return nil, err
	}
	node, ok := nodes[id]
	if !ok {
		return nil, fmt.Errorf("identity %d: %w", id, ErrNotFound)
	}

	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()
	res, err := proto.CSSGetMatchedStylesForNode{NodeID: node}.Call(c.page.Context(qctx))
	if err != nil {
		return nil, fmt.Errorf("unable to get matched styles: %w", err)
	}
	return matchedDeclarations(res)
}

// Close closes page and browser, launched browser process is cleaned up.
func (c *Chrome) Close() error {
	var err error
	if c.page != nil {
		err = multierr.Append(err, c.page.Close())
	}
	return multierr.Append(err, c.cleanup())
}

func (c *Chrome) cleanup() (err error) {
	if c.browser != nil {
		err = c.browser.Close()
		c.browser = nil
	}
	if c.lnch != nil {
		c.lnch.Cleanup()
		c.lnch = nil
	}
	return err
}

// identified maps identities to DevTools node ids. Node ids are only valid
// for the current document, so the map is rebuilt after every navigation.
func (c *Chrome) identified(ctx context.Context) (map[style.Identity]proto.DOMNodeID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nodes != nil {
		return c.nodes, nil
	}
	if c.url == "" {
		return nil, fmt.Errorf("no document loaded")
	}

	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()
	page := c.page.Context(qctx)

	doc, err := proto.DOMGetDocument{}.Call(page)
	if err != nil {
		return nil, fmt.Errorf("unable to get document: %w", err)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("malformed DOM.getDocument response: no root node")
	}
	found, err := proto.DOMQuerySelectorAll{NodeID: doc.Root.NodeID, Selector: "[" + c.attr + "]"}.Call(page)
	if err != nil {
		return nil, fmt.Errorf("unable to query identified elements: %w", err)
	}

	nodes := make(map[style.Identity]proto.DOMNodeID, len(found.NodeIDs))
	for _, node := range found.NodeIDs {
		attrs, err := proto.DOMGetAttributes{NodeID: node}.Call(page)
		if err != nil {
			return nil, fmt.Errorf("unable to get attributes of node %d: %w", node, err)
		}
		id, err := identity(attrs.Attributes, c.attr)
		if err != nil {
			c.log.Warn("Element with unusable identity, skipping", zap.Int("node", int(node)), zap.Error(err))
			continue
		}
		nodes[id] = node
	}
	c.nodes = nodes
	return nodes, nil
}

func (c *Chrome) computed(ctx context.Context, node proto.DOMNodeID) (style.Record, error) {
	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()
	res, err := proto.CSSGetComputedStyleForNode{NodeID: node}.Call(c.page.Context(qctx))
	if err != nil {
		return nil, err
	}
	return computedRecord(res)
}

// identity extracts identity from interleaved name/value attribute list.
func identity(attrs []string, name string) (style.Identity, error) {
	if len(attrs)%2 != 0 {
		return 0, fmt.Errorf("malformed attribute list of length %d", len(attrs))
	}
	for i := 0; i < len(attrs); i += 2 {
		if attrs[i] == name {
			return style.ParseIdentity(attrs[i+1])
		}
	}
	return 0, fmt.Errorf("attribute %s is missing", name)
}

func computedRecord(res *proto.CSSGetComputedStyleForNodeResult) (style.Record, error) {
	rec := make(style.Record, len(res.ComputedStyle))
	for i, p := range res.ComputedStyle {
		if p == nil || p.Name == "" {
			return nil, fmt.Errorf("malformed computed style entry %d", i)
		}
		rec[p.Name] = p.Value
	}
	return rec, nil
}

func matchedDeclarations(res *proto.CSSGetMatchedStylesForNodeResult) ([]style.Declaration, error) {
	var (
		decls []style.Declaration
		rank  int
	)
	for i, m := range res.MatchedCSSRules {
		if m == nil || m.Rule == nil || m.Rule.Style == nil {
			return nil, fmt.Errorf("malformed matched rule %d", i)
		}
		if m.Rule.Origin != proto.CSSStyleSheetOriginRegular {
			continue
		}
		source := ""
		if m.Rule.SelectorList != nil {
			source = m.Rule.SelectorList.Text
		}
		add, err := styleDeclarations(m.Rule.Style, rank, source)
		if err != nil {
			return nil, fmt.Errorf("matched rule %d: %w", i, err)
		}
		decls = append(decls, add...)
		rank++
	}
	if res.InlineStyle != nil {
		add, err := styleDeclarations(res.InlineStyle, rank, "style")
		if err != nil {
			return nil, fmt.Errorf("inline style: %w", err)
		}
		decls = append(decls, add...)
	}
	return decls, nil
}

func styleDeclarations(s *proto.CSSCSSStyle, rank int, source string) ([]style.Declaration, error) {
	var (
		decls     []style.Declaration
		shorthand *proto.CSSCSSProperty
	)
	for i, p := range s.CSSProperties {
		if p == nil || p.Name == "" {
			return nil, fmt.Errorf("malformed property %d", i)
		}
		important := p.Important
		// engine adds longhands of shorthands without source range, they
		// carry the only attributable values of shorthands kept verbatim
		if s.Range != nil && p.Range == nil {
			if shorthand == nil || !longhandOf(p.Name, shorthand.Name) {
				continue
			}
			important = shorthand.Important
		} else {
			shorthand = nil
			if !p.Disabled {
				shorthand = p
			}
		}
		if p.Disabled || p.Value == "" {
			continue
		}
		decls = append(decls, style.Declaration{
			Property:  p.Name,
			Value:     p.Value,
			Rank:      rank,
			Important: important,
			Source:    source,
		})
	}
	return decls, nil
}

// longhandOf reports whether property is set by shorthand. Shorthands unknown
// to normalizer are matched by name prefix (transition, border-image).
func longhandOf(property, shorthand string) bool {
	if slices.Contains(css.Longhands(shorthand), property) {
		return true
	}
	return strings.HasPrefix(property, shorthand+"-")
}
