package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/baytretail/core/internal/ai/domain"
	"github.com/dustin/go-humanize"
)

// View is the uniform projection of an AiRecommendation's opaque RecommendationJSON payload
// that a review UI renders without needing to understand every agent's schema.
type View struct {
	Kind       string         `json:"kind"`
	KindLabel  string         `json:"kind_label"`
	Title      string         `json:"title"`
	Summary    string         `json:"summary"`
	NextStep   string         `json:"next_step,omitempty"`
	Severity   string         `json:"severity"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	LinkHref   string         `json:"link_href,omitempty"`
	LinkLabel  string         `json:"link_label,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

var severityRank = map[string]int{"info": 0, "low": 1, "medium": 2, "high": 3, "critical": 4}

func normalizeSeverity(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := severityRank[s]; !ok {
		return "medium"
	}
	return s
}

func maxSeverity(vals ...string) string {
	best := "info"
	for _, v := range vals {
		v = normalizeSeverity(v)
		if severityRank[v] > severityRank[best] {
			best = v
		}
	}
	return best
}

func entityLink(entityType, entityID string) (href, label string) {
	if entityID == "" {
		return "", ""
	}
	switch entityType {
	case "item":
		return "/catalog/items/" + entityID, "View item"
	case "supplier_invoice":
		return "/purchasing/supplier-invoices/" + entityID, "View supplier invoice"
	case "customer":
		return "/partners/customers/" + entityID, "View customer"
	case "purchase_order":
		return "/purchasing/purchase-orders/" + entityID, "View purchase order"
	case "item_price":
		return "/pricing/item-prices/" + entityID, "View price"
	case "pos_device":
		return "/system/pos-devices", "View POS devices"
	default:
		return "", ""
	}
}

func humanizeToken(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// fmtAmountUSD renders a dollar figure the way a reviewer reads it: comma-grouped, two
// decimals, via humanize.FormatFloat rather than a bare Sprintf.
func fmtAmountUSD(v any) string {
	switch t := v.(type) {
	case float64:
		return "$" + humanize.FormatFloat("#,###.##", t)
	case string:
		return "$" + t
	default:
		return fmt.Sprintf("$%v", v)
	}
}

// fmtQty renders a stock quantity comma-grouped, e.g. "1,024.50".
func fmtQty(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func num(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

// recommendationView dispatches on rec.AgentCode and the recommendation_json's own "kind"
// field to produce a uniform View, mirroring the original system's _recommendation_view
// routine for the agent codes this repo supports end to end: data-hygiene issue rollups,
// reorder suggestions from the purchase/demand/inventory agents, pricing-margin alerts, and
// a generic fallback for every other agent code.
func recommendationView(rec domain.AiRecommendation) View {
	j := map[string]any(rec.RecommendationJSON)
	kind := str(j, "kind")
	entityType := str(j, "entity_type")
	entityID := str(j, "entity_id")
	href, label := entityLink(entityType, entityID)

	switch rec.AgentCode {
	case "AI_DATA_HYGIENE":
		issuesRaw, _ := j["issues"].([]any)
		var sevs []string
		var titles []string
		for _, ir := range issuesRaw {
			issue, _ := ir.(map[string]any)
			sevs = append(sevs, str(issue, "severity"))
			titles = append(titles, str(issue, "title"))
		}
		sort.Strings(titles)
		return View{
			Kind: "data_hygiene", KindLabel: "Data Hygiene",
			Title:    fmt.Sprintf("%d data quality issue(s) found", len(issuesRaw)),
			Summary:  strings.Join(titles, "; "),
			Severity: maxSeverity(sevs...),
			Details:  j,
		}

	case "AI_PURCHASE", "AI_DEMAND", "AI_INVENTORY":
		itemName := str(j, "item_name")
		onHand := num(j, "on_hand_qty")
		reorderPoint := num(j, "reorder_point")
		suggestedQty := num(j, "suggested_qty")
		return View{
			Kind: "reorder", KindLabel: "Reorder Suggestion",
			Title:      fmt.Sprintf("Reorder %s", itemName),
			Summary:    fmt.Sprintf("%s on hand %s is below reorder point %s; suggest ordering %s", itemName, fmtQty(onHand), fmtQty(reorderPoint), fmtQty(suggestedQty)),
			NextStep:   "Create or extend a purchase order for this item",
			Severity:   normalizeSeverity(str(j, "severity")),
			EntityType: entityType, EntityID: entityID, LinkHref: href, LinkLabel: label,
			Details: j,
		}

	case "AI_PRICING":
		itemName := str(j, "item_name")
		marginPct := num(j, "margin_pct")
		return View{
			Kind: "low_margin", KindLabel: "Pricing",
			Title:      fmt.Sprintf("Low margin on %s", itemName),
			Summary:    fmt.Sprintf("Current margin is %.1f%%, below the target threshold", marginPct),
			NextStep:   "Review and adjust the item's price",
			Severity:   normalizeSeverity(str(j, "severity")),
			EntityType: entityType, EntityID: entityID, LinkHref: href, LinkLabel: label,
			Details: j,
		}

	case "AI_PRICE_IMPACT":
		itemName := str(j, "item_name")
		oldCost, newCost := num(j, "old_cost_usd"), num(j, "new_cost_usd")
		suggested := num(j, "suggested_price_usd")
		return View{
			Kind: "price_impact", KindLabel: "Cost Increase Impact",
			Title:      fmt.Sprintf("Cost increase on %s", itemName),
			Summary:    fmt.Sprintf("Cost moved from %s to %s; suggested price %s to hold margin", fmtAmountUSD(oldCost), fmtAmountUSD(newCost), fmtAmountUSD(suggested)),
			NextStep:   "Review and update the item's price",
			Severity:   normalizeSeverity(str(j, "severity")),
			EntityType: entityType, EntityID: entityID, LinkHref: href, LinkLabel: label,
			Details: j,
		}

	default:
		title := str(j, "title")
		if title == "" {
			title = "Recommendation"
		}
		if kind == "" {
			kind = "generic"
		}
		return View{
			Kind: kind, KindLabel: humanizeToken(rec.AgentCode),
			Title:      title,
			Summary:    str(j, "summary"),
			Severity:   normalizeSeverity(str(j, "severity")),
			EntityType: entityType, EntityID: entityID, LinkHref: href, LinkLabel: label,
			Details: j,
		}
	}
}
