// Package strategy turns scores, signals and risk into per-bucket
// suggestions, trade actions and notification messages.
package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/optimization"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/signals"
	"github.com/karmyshunde-sudo/karmy-gold/internal/modules/sizing"
	"github.com/karmyshunde-sudo/karmy-gold/pkg/formulas"
)

// MinCandidates is the fewest shortlisted instruments a bucket needs
const MinCandidates = 2

const weightEpsilon = 1e-9

// Suggestion line texts
const (
	LineNoAction    = "• 无需操作: 当前持仓符合最优组合要求"
	LineNoPortfolio = "• 未找到合适的ETF组合，保持当前持仓"
)

// PlanInput is everything the planner needs for one bucket
type PlanInput struct {
	Bucket      domain.BucketType
	Params      domain.BucketParams
	Candidates  []domain.Score // shortlisted and admitted to the bucket
	Optimal     optimization.Portfolio
	Current     domain.BucketHolding
	Scores      map[string]float64 // composite of every scored instrument
	Signals     map[string]signals.Signal
	Stops       map[string]sizing.StopLoss
	Prices      map[string]float64 // latest close
	Target      float64            // target exposure before the bucket cap
	Risk        domain.RiskSnapshot
	SwitchFloor float64
	Tolerance   float64
	RunID       string
	Now         time.Time
}

// Plan is the planner output for one bucket
type Plan struct {
	Bucket   domain.BucketType    `json:"bucket"`
	Lines    []string             `json:"lines"`
	Actions  []domain.TradeAction `json:"actions"`
	Holdings []domain.Holding     `json:"holdings"` // post-action state
	Target   float64              `json:"target"`
	Invested float64              `json:"invested"`
}

// Suggestion joins the plan lines
func (p Plan) Suggestion() string {
	return strings.Join(p.Lines, "\n")
}

type planner struct {
	in       PlanInput
	utc      time.Time
	beijing  time.Time
	lines    []string
	actions  []domain.TradeAction
	holdings []domain.Holding
}

// BuildPlan decides the actions of one bucket. The order is: switch out of
// holdings that left the optimal set, stop-loss, then exposure adjustment.
// Exposure is not adjusted in a pass that rebuilt the bucket.
func BuildPlan(in PlanInput) Plan {
	p := &planner{in: in}
	p.utc, p.beijing = domain.DualTime(in.Now)
	p.holdings = append([]domain.Holding(nil), in.Current.Holdings...)

	target := math.Min(in.Target, in.Params.MaxPosition)

	switch {
	case len(in.Candidates) < MinCandidates:
		p.lines = append(p.lines, fmt.Sprintf("• 无足够ETF数据，无法生成%s策略建议", in.Bucket.Label()))
	case len(in.Optimal.Members) == 0:
		p.lines = append(p.lines, LineNoPortfolio)
	default:
		rebuilt := p.rebalance(target)
		p.stopLoss()
		if !rebuilt {
			p.adjustExposure(target)
		}
	}

	if len(p.lines) == 0 {
		p.lines = append(p.lines, LineNoAction)
	}
	p.lines = append(p.lines, RiskLines(in.Risk, in.Params)...)

	return Plan{
		Bucket:   in.Bucket,
		Lines:    p.lines,
		Actions:  p.actions,
		Holdings: p.holdings,
		Target:   target,
		Invested: totalWeight(p.holdings),
	}
}

// RiskLines is the risk hint appended to every bucket suggestion
func RiskLines(risk domain.RiskSnapshot, params domain.BucketParams) []string {
	lines := []string{fmt.Sprintf("• 风险提示: 当前风险水平 %s", strings.ToUpper(string(risk.OverallLevel)))}
	if risk.MaxDrawdownWarning > params.MaxDrawdownWarning {
		lines = append(lines, fmt.Sprintf("  - 警告: 组合最大回撤 %s 超过阈值 %s",
			percent(risk.MaxDrawdownWarning, 1), percent(params.MaxDrawdownWarning, 1)))
	}
	return lines
}

// rebalance builds an empty bucket or switches a bucket whose holdings left
// the optimal set. It reports whether the bucket was rebuilt.
func (p *planner) rebalance(target float64) bool {
	in := p.in
	if len(p.holdings) == 0 {
		level := math.Min(in.Params.InitialPosition, target)
		bought := p.buy(in.Optimal.Members, level, "新增持仓", false)
		if len(bought) > 0 {
			p.lines = append(p.lines, "• 需要新增持仓: 当前空仓",
				"  - 买入: "+strings.Join(bought, ", "))
		}
		return true
	}

	reason, ok := p.switchReason()
	if !ok {
		return false
	}

	var sold []string
	kept := p.holdings[:0:0]
	for _, h := range p.holdings {
		if p.keeps(h.Code) {
			kept = append(kept, h)
			continue
		}
		p.record(h.Code, h.Name, domain.ActionSell, domain.QuantityAll, "换仓: "+reason)
		sold = append(sold, h.Code)
	}
	p.holdings = kept

	invested := totalWeight(p.in.Current.Holdings)
	level := formulas.Clamp(invested, math.Min(in.Params.InitialPosition, target), target)

	var fresh []optimization.Member
	for _, m := range in.Optimal.Members {
		if _, held := findHolding(p.holdings, m.Code); !held && !p.belowFloor(m.Code) {
			fresh = append(fresh, m)
		}
	}
	bought := p.buy(fresh, level, "换入最优组合", true)
	p.reweight(level)

	p.lines = append(p.lines, "• 需要换仓: "+reason)
	if len(sold) > 0 {
		p.lines = append(p.lines, "  - 卖出: "+strings.Join(sold, ", "))
	}
	if len(bought) > 0 {
		p.lines = append(p.lines, "  - 买入: "+strings.Join(bought, ", "))
	}
	if pending := pendingCodes(fresh, bought); len(pending) > 0 {
		p.lines = append(p.lines, "  - 待买入信号确认: "+strings.Join(pending, ", "))
	}
	return true
}

func (p *planner) switchReason() (string, bool) {
	for _, h := range p.holdings {
		if !p.in.Optimal.Contains(h.Code) {
			return "当前持仓ETF不在最优组合中", true
		}
	}
	for _, h := range p.holdings {
		if p.belowFloor(h.Code) {
			return fmt.Sprintf("持仓ETF %s 评分过低(%.2f)", h.Code, p.in.Scores[h.Code]), true
		}
	}
	return "", false
}

// keeps reports whether a held code survives a switch
func (p *planner) keeps(code string) bool {
	return p.in.Optimal.Contains(code) && !p.belowFloor(code)
}

// belowFloor is true for codes scoring under the switch floor. Codes
// without a score count as 0.
func (p *planner) belowFloor(code string) bool {
	return p.in.Scores[code] < p.in.SwitchFloor
}

// buy opens positions in members at level × member weight. With
// needSignal, members without a confirmed buy signal are skipped.
func (p *planner) buy(members []optimization.Member, level float64, note string, needSignal bool) []string {
	var bought []string
	for _, m := range members {
		if needSignal && p.in.Signals[m.Code].Type != signals.TypeBuy {
			continue
		}
		price, ok := p.in.Prices[m.Code]
		if !ok || price <= 0 {
			continue
		}
		p.record(m.Code, m.Name, domain.ActionBuy, domain.QuantityByWeight, note)
		p.holdings = append(p.holdings, domain.Holding{
			Code:      m.Code,
			Name:      m.Name,
			CostPrice: price,
			EntryDate: dateOf(p.beijing),
			Weight:    m.Weight * level,
		})
		bought = append(bought, m.Code)
	}
	return bought
}

// reweight sets every remaining holding to level × its optimal weight
func (p *planner) reweight(level float64) {
	weights := p.in.Optimal.Weights()
	for i := range p.holdings {
		if w, ok := weights[p.holdings[i].Code]; ok {
			p.holdings[i].Weight = w * level
		}
	}
}

func (p *planner) stopLoss() {
	kept := p.holdings[:0:0]
	for _, h := range p.holdings {
		price, ok := p.in.Prices[h.Code]
		stop, hasStop := p.in.Stops[h.Code]
		if !ok || !hasStop || h.CostPrice <= 0 || !sizing.Triggered(h.CostPrice, price, stop.Fraction) {
			kept = append(kept, h)
			continue
		}

		loss := (price - h.CostPrice) / h.CostPrice
		p.record(h.Code, h.Name, domain.ActionStopLossSell, domain.QuantityAll,
			fmt.Sprintf("触发止损(%s)", percent(stop.Fraction, 1)))
		p.lines = append(p.lines, fmt.Sprintf("• 触发止损: ETF %s 亏损 %s (止损线: %s)",
			h.Code, percent(loss, 1), percent(stop.Fraction, 1)))
	}
	p.holdings = kept
}

func (p *planner) adjustExposure(target float64) {
	invested := totalWeight(p.holdings)
	gap := target - invested
	if math.Abs(gap) <= p.in.Tolerance || len(p.holdings) == 0 {
		return
	}

	note := fmt.Sprintf("调整仓位至%s", percent(target, 0))
	if gap > 0 {
		level := nextTranche(p.in.Params, invested, target)
		for i := range p.holdings {
			if invested > weightEpsilon {
				p.holdings[i].Weight *= level / invested
			} else {
				p.holdings[i].Weight = level / float64(len(p.holdings))
			}
			p.record(p.holdings[i].Code, p.holdings[i].Name, domain.ActionAdd, domain.QuantityByWeight, note)
		}
		p.lines = append(p.lines, fmt.Sprintf("• 需要加仓: 仓位目标 %s，当前 %s", percent(target, 0), percent(invested, 0)))
		return
	}

	// Reduce the lowest scores first
	order := make([]int, len(p.holdings))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p.in.Scores[p.holdings[order[a]].Code] < p.in.Scores[p.holdings[order[b]].Code]
	})

	excess := -gap
	for _, i := range order {
		if excess <= weightEpsilon {
			break
		}
		h := &p.holdings[i]
		cut := math.Min(h.Weight, excess)
		h.Weight -= cut
		excess -= cut
		p.record(h.Code, h.Name, domain.ActionReduce, domain.QuantityPartial, note)
	}

	kept := p.holdings[:0:0]
	for _, h := range p.holdings {
		if h.Weight > weightEpsilon {
			kept = append(kept, h)
		}
	}
	p.holdings = kept
	p.lines = append(p.lines, fmt.Sprintf("• 需要减仓: 仓位目标 %s，当前 %s", percent(target, 0), percent(invested, 0)))
}

// nextTranche is the invested level after one add: the next rung of the
// initial + add ladder above invested, capped at target
func nextTranche(params domain.BucketParams, invested, target float64) float64 {
	level := params.InitialPosition
	for _, add := range params.AddPositions {
		if level > invested+weightEpsilon {
			break
		}
		level += add
	}
	if level <= invested+weightEpsilon || level > target {
		level = target
	}
	return level
}

func (p *planner) record(code, name string, action domain.ActionType, quantity, note string) {
	p.actions = append(p.actions, domain.TradeAction{
		RunID:       p.in.RunID,
		TimeUTC:     p.utc,
		TimeBeijing: p.beijing,
		Bucket:      p.in.Bucket,
		Code:        code,
		Name:        name,
		Price:       p.in.Prices[code],
		Quantity:    quantity,
		Action:      action,
		Note:        note,
	})
}

func pendingCodes(members []optimization.Member, bought []string) []string {
	done := make(map[string]bool, len(bought))
	for _, c := range bought {
		done[c] = true
	}
	var pending []string
	for _, m := range members {
		if !done[m.Code] {
			pending = append(pending, m.Code)
		}
	}
	return pending
}

func findHolding(holdings []domain.Holding, code string) (domain.Holding, bool) {
	for _, h := range holdings {
		if h.Code == code {
			return h, true
		}
	}
	return domain.Holding{}, false
}

func totalWeight(holdings []domain.Holding) float64 {
	total := 0.0
	for _, h := range holdings {
		total += h.Weight
	}
	return total
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// percent renders a fraction as a percentage with places decimals
func percent(v float64, places int) string {
	return fmt.Sprintf("%.*f%%", places, v*100)
}
