package formengine

import (
	"go.uber.org/zap"

	"github.com/dkv-labs/pps-api/internal/models"
)

// Engine owns a topic's form state and re-runs formula evaluation whenever a
// field changes. Formula failures never propagate: one bad formula must not
// block editing of unrelated fields, so the engine logs the failure and keeps
// the previous value or the target question's declared default.
type Engine struct {
	module    models.Module
	topic     models.Topic
	questions []models.Question
	subTopics []models.SubTopic
	companies []models.Company

	state  *FormState
	rollup *RollupConfig
	cache  *ValueCache
	logger *zap.Logger

	known       map[int64]struct{}
	questionsBy map[int64]models.Question

	// recomputing suppresses re-entrant passes: writes performed during a
	// recomputation must not trigger another one.
	recomputing bool
}

// NewEngine builds the form shape for the given topic form and wraps it in a
// recomputation engine. The value cache is owned by the caller so its
// lifecycle (populate on topic load, clear on navigation) stays explicit.
func NewEngine(form *models.TopicForm, rollup *RollupConfig, cache *ValueCache, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewValueCache()
	}

	questions := orderedQuestions(form.Questions)
	known := make(map[int64]struct{}, len(questions))
	byID := make(map[int64]models.Question, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
		byID[q.ID] = q
	}

	state := BuildShape(ShapeInput{
		Topic:     form.Topic,
		Questions: form.Questions,
		SubTopics: form.SubTopics,
		Companies: form.Companies,
		Prior:     form.Prior,
		Rollup:    rollup,
		Cache:     cache,
	})

	return &Engine{
		module:      form.Module,
		topic:       form.Topic,
		questions:   questions,
		subTopics:   orderedSubTopics(form.SubTopics),
		companies:   form.Companies,
		state:       state,
		rollup:      rollup,
		cache:       cache,
		logger:      logger,
		known:       known,
		questionsBy: byID,
	}
}

// State exposes the engine's form state.
func (e *Engine) State() *FormState {
	return e.state
}

// SetField writes a user-entered value and triggers a recomputation pass.
// Keys outside the topic's shape are ignored.
func (e *Engine) SetField(key FieldKey, value string) {
	if !e.state.Has(key) {
		e.logger.Debug("ignoring field outside form shape",
			zap.Int64("question_id", key.QuestionID),
			zap.Int64("sub_topic_id", key.SubTopicID),
			zap.Int64("company_id", key.CompanyID))
		return
	}
	e.state.Set(key, value)
	e.onFieldChange()
}

// SetDocument attaches uploaded-file references to a document field.
func (e *Engine) SetDocument(key FieldKey, ref DocumentRef) {
	if !e.state.Has(key) {
		return
	}
	e.state.SetDocument(key, ref)
}

// RecomputeAll runs a full recomputation pass: date series reconciliation,
// formula evaluation, and roll-up refresh.
func (e *Engine) RecomputeAll() {
	e.onFieldChange()
}

func (e *Engine) onFieldChange() {
	if e.recomputing {
		return
	}
	e.recomputing = true
	defer func() { e.recomputing = false }()

	e.reconcileDateSeries()
	e.applyFormulas()
	e.refreshRollup()
}

// reconcileDateSeries resizes count-driven date sub-field series: excess
// indices are removed, missing ones added, surviving indices keep their value.
func (e *Engine) reconcileDateSeries() {
	if e.topic.Layout.IsMatrix() {
		return
	}
	for _, q := range e.questions {
		if q.Type != models.QuestionDate || q.CountQuestionID == nil {
			continue
		}
		count := seriesCount(e.state.Value(FieldKey{QuestionID: *q.CountQuestionID}))
		desired := make(map[FieldKey]struct{}, count)
		for _, key := range DateSeriesKeys(q.ID, count) {
			desired[key] = struct{}{}
			if !e.state.Has(key) {
				e.state.Set(key, "")
			}
		}
		for _, key := range e.state.Keys() {
			if key.QuestionID != q.ID || key.Seq == 0 {
				continue
			}
			if _, keep := desired[key]; !keep {
				e.state.Delete(key)
			}
		}
	}
}

// applyFormulas evaluates every formula-bearing question once per pass, in
// dependency order: a formula reading another formula's target runs after it,
// so chained formulas see fresh values within a single pass.
func (e *Engine) applyFormulas() {
	formulas := make([]Formula, 0, len(e.questions))
	for _, q := range e.questions {
		if q.Formula == "" {
			continue
		}
		formula, err := ParseFormula(q.Formula)
		if err != nil {
			e.logFormulaFailure(q, err)
			continue
		}
		formulas = append(formulas, formula)
	}

	for _, formula := range orderFormulas(formulas, e.known) {
		if !e.topic.Layout.IsMatrix() {
			e.applyFlat(formula)
			continue
		}

		if len(e.companies) > 0 && !e.rollup.SummaryFor(e.topic.ID) {
			// resolution runs once per selected company; each company's
			// target column is written independently
			for _, companyID := range companyIDs(e.companies) {
				e.applyMatrix(formula, companyID)
			}
			continue
		}
		e.applyMatrix(formula, 0)
	}
}

// orderFormulas topologically sorts formulas by their operand references.
// Cyclic chains keep their declared order.
func orderFormulas(formulas []Formula, known map[int64]struct{}) []Formula {
	byTarget := make(map[int64]int, len(formulas))
	for i, f := range formulas {
		byTarget[f.TargetQuestionID] = i
	}

	deps := make([][]int, len(formulas))
	for i, f := range formulas {
		for _, questionID := range referencedQuestions(f.Expr, known) {
			if j, ok := byTarget[questionID]; ok && j != i {
				deps[i] = append(deps[i], j)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	ordered := make([]Formula, 0, len(formulas))
	state := make([]int, len(formulas))
	var visit func(int)
	visit = func(i int) {
		if state[i] != unvisited {
			return
		}
		state[i] = visiting
		for _, j := range deps[i] {
			visit(j)
		}
		state[i] = done
		ordered = append(ordered, formulas[i])
	}
	for i := range formulas {
		visit(i)
	}
	return ordered
}

func (e *Engine) applyFlat(formula Formula) {
	target := FieldKey{QuestionID: formula.TargetQuestionID}
	scope := ResolveScope{Layout: e.topic.Layout, KnownQuestions: e.known}
	e.evaluateInto(formula.Expr, scope, target)
}

func (e *Engine) applyMatrix(formula Formula, companyID int64) {
	subTopicIDs := e.subTopicIDs()

	if formula.SingleCell() {
		target := FieldKey{CompanyID: companyID, QuestionID: formula.TargetQuestionID, SubTopicID: formula.TargetSubTopicID}
		scope := ResolveScope{
			Layout:         e.topic.Layout,
			CompanyID:      companyID,
			SubTopicIDs:    subTopicIDs,
			KnownQuestions: e.known,
		}
		e.evaluateInto(formula.Expr, scope, target)
		return
	}

	// bare target: apply the formula to every subtopic column, resolving
	// bare operand tokens against that column's cells
	for _, subTopicID := range subTopicIDs {
		target := FieldKey{CompanyID: companyID, QuestionID: formula.TargetQuestionID, SubTopicID: subTopicID}
		scope := ResolveScope{
			Layout:            e.topic.Layout,
			CompanyID:         companyID,
			SubTopicIDs:       subTopicIDs,
			CurrentSubTopicID: subTopicID,
			KnownQuestions:    e.known,
		}
		e.evaluateInto(formula.Expr, scope, target)
	}
}

func (e *Engine) evaluateInto(expr string, scope ResolveScope, target FieldKey) {
	if !e.state.Has(target) {
		e.logger.Debug("formula target outside form shape",
			zap.Int64("question_id", target.QuestionID),
			zap.Int64("sub_topic_id", target.SubTopicID))
		return
	}

	resolved, err := ResolveReferences(expr, scope, e.state)
	if err == nil {
		var result string
		if result, err = Evaluate(resolved); err == nil {
			e.state.Set(target, result)
			return
		}
	}

	// recoverable: keep the previous value, or fall back to the target
	// question's declared default when the field is still blank
	if q, ok := e.questionsBy[target.QuestionID]; ok {
		e.logFormulaFailure(q, err)
		if e.state.Value(target) == "" && q.DefaultValue != "" {
			e.state.Set(target, q.DefaultValue)
		}
	}
}

// refreshRollup keeps the company aggregation current. Editing the source
// topic pushes live company cells into the cache; the summary topic recomputes
// every mapped cell as the sum of the corresponding source cell over all
// selected companies, using cached values for companies not currently loaded.
func (e *Engine) refreshRollup() {
	if e.rollup == nil {
		return
	}

	if e.rollup.SourceFor(e.topic.ID) {
		for _, key := range e.state.Keys() {
			if key.CompanyID == 0 || key.Seq != 0 {
				continue
			}
			e.cache.Put(key.CompanyID, key.QuestionID, key.SubTopicID, e.state.Value(key))
		}
	}

	if e.rollup.SummaryFor(e.topic.ID) {
		selected := companyIDs(e.companies)
		for _, q := range e.questions {
			for _, st := range e.subTopics {
				key := FieldKey{QuestionID: q.ID, SubTopicID: st.ID}
				if !e.state.Has(key) {
					continue
				}
				e.state.Set(key, sumAcrossCompanies(e.cache, e.rollup, selected, q.ID, st.ID))
			}
		}
	}
}

func (e *Engine) subTopicIDs() []int64 {
	ids := make([]int64, 0, len(e.subTopics))
	for _, st := range e.subTopics {
		ids = append(ids, st.ID)
	}
	return ids
}

func (e *Engine) logFormulaFailure(q models.Question, err error) {
	e.logger.Warn("formula skipped",
		zap.Int64("topic_id", e.topic.ID),
		zap.Int64("question_id", q.ID),
		zap.String("formula", q.Formula),
		zap.Error(err))
}

// sumAcrossCompanies computes one summary cell: the sum over every selected
// company of the mapped source cell's cached value. Cells without a mapping
// aggregate to zero.
func sumAcrossCompanies(cache *ValueCache, cfg *RollupConfig, companies []int64, questionID, subTopicID int64) string {
	srcQuestionID, srcSubTopicID, ok := cfg.MapField(questionID, subTopicID)
	if !ok {
		return "0"
	}
	var total float64
	for _, companyID := range companies {
		if v, found := cache.Get(companyID, srcQuestionID, srcSubTopicID); found {
			total += numericValue(v)
		}
	}
	return formatNumber(total)
}
