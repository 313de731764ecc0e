package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"muhasibi/guardrails"
	"muhasibi/modelclient"
	"muhasibi/retrieval"
	"muhasibi/trace"
)

// Timeouts holds the independent deadlines for each external call plus
// the total request budget.
type Timeouts struct {
	Retrieval time.Duration
	Model     time.Duration
	Total     time.Duration
}

// DefaultTimeouts returns the default deadlines: retrieval 2s, model 20s,
// total 30s.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Retrieval: 2 * time.Second,
		Model:     20 * time.Second,
		Total:     30 * time.Second,
	}
}

// Orchestrator runs a question through all eight stages in strict
// sequential order. It holds no per-request mutable state of
// its own; every field here is a shared, concurrency-safe collaborator.
type Orchestrator struct {
	Resolver        Resolver
	RetrievalEngine *retrieval.Engine
	ModelClient     *modelclient.Client // nil disables all model-assisted stages
	MaxPackets      int
	Timeouts        Timeouts
	Policy          AccountPolicy // zero value behaves like DefaultAccountPolicy
	Sink            trace.Sink    // nil disables trace persistence
}

// Run executes the pipeline for one question and returns the Final
// Response plus its accumulated trace. An explicit cancellation of ctx at
// any suspension point aborts cleanly: no partial response is persisted
// and no trace record is emitted. A total-deadline breach instead returns
// a refusal response with contract_outcome=FAIL, reason=deadline_exceeded.
func (o *Orchestrator) Run(ctx context.Context, requestID, question, language string, mode Mode) (*FinalResponse, []trace.StateRecord, error) {
	totalCtx, cancel := context.WithTimeout(ctx, o.Timeouts.Total)
	defer cancel()

	recorder := trace.NewRecorder()
	start := time.Now()
	policy := o.Policy.withDefaults()

	reqCtx := &RequestContext{
		RequestID: requestID,
		Question:  question,
		Language:  language,
		Mode:      mode,
	}

	// LISTEN
	listenResult, status := Listen(question, o.Resolver, policy)
	reqCtx.Listen = listenResult
	recorder.Append(o.record("LISTEN", mode, language, start, trace.Counts{
		EntityCount:  len(listenResult.EntityMatches),
		KeywordCount: len(listenResult.Keywords),
	}, status))
	if status.Status == StatusFail {
		return o.refuse(totalCtx, reqCtx, recorder, start, status.Reason)
	}

	// LISTEN model fallback: deterministic rules first, classifier only
	// when they come up empty-handed (suspends).
	if listenResult.Intent == IntentAmbiguous && o.ModelClient != nil {
		classifyCtx, classifyCancel := context.WithTimeout(totalCtx, o.Timeouts.Model)
		cls, err := o.ModelClient.ClassifyIntent(classifyCtx, listenResult.NormalizedQuestion, matchedNames(listenResult.EntityMatches), listenResult.Keywords)
		classifyCancel()
		if err == nil && cls != nil && cls.IntentType != "" {
			listenResult.Intent = Intent(cls.IntentType)
			listenResult.InScope = cls.InScope
		}
	}
	if resp, records, err, done := o.checkDeadline(totalCtx, reqCtx, recorder, start); done {
		return resp, records, err
	}

	// PURPOSE (model-assisted, suspends)
	purposeCtx, purposeCancel := context.WithTimeout(totalCtx, o.Timeouts.Model)
	purposeResult, status := Purpose(purposeCtx, o.ModelClient, listenResult.NormalizedQuestion, listenResult.EntityMatches, listenResult.Keywords)
	purposeCancel()
	reqCtx.Purpose = purposeResult
	recorder.Append(o.record("PURPOSE", mode, language, start, trace.Counts{}, status))
	if resp, records, err, done := o.checkDeadline(totalCtx, reqCtx, recorder, start); done {
		return resp, records, err
	}

	// PATH
	pathResult, status := Path(listenResult.EntityMatches, listenResult.Intent)
	reqCtx.Path = pathResult
	recorder.Append(o.record("PATH", mode, language, start, trace.Counts{}, status))
	if resp, records, err, done := o.checkDeadline(totalCtx, reqCtx, recorder, start); done {
		return resp, records, err
	}

	// RETRIEVE (suspends)
	retrieveCtx, retrieveCancel := context.WithTimeout(totalCtx, o.Timeouts.Retrieval)
	retrieveResult, status := Retrieve(retrieveCtx, o.RetrievalEngine, listenResult.NormalizedQuestion, listenResult.Keywords, listenResult.EntityMatches, o.MaxPackets)
	retrieveCancel()
	reqCtx.Retrieve = retrieveResult
	recorder.Append(o.record("RETRIEVE", mode, language, start, trace.Counts{
		PacketCount: len(retrieveResult.Packets),
	}, status))
	if resp, records, err, done := o.checkDeadline(totalCtx, reqCtx, recorder, start); done {
		return resp, records, err
	}

	// ACCOUNT
	accountResult, status := Account(policy, listenResult.NormalizedQuestion, listenResult.Keywords, listenResult.EntityMatches, listenResult.InScope, retrieveResult.Packets)
	reqCtx.Account = accountResult
	recorder.Append(o.record("ACCOUNT", mode, language, start, trace.Counts{}, status))
	if resp, records, err, done := o.checkDeadline(totalCtx, reqCtx, recorder, start); done {
		return resp, records, err
	}

	if accountResult.Outcome != AccountSufficient {
		resp := Finalize(reqCtx)
		return o.finish(totalCtx, reqCtx, resp, recorder, start)
	}

	// INTERPRET (model-assisted, suspends)
	interpretCtx, interpretCancel := context.WithTimeout(totalCtx, o.Timeouts.Model)
	interpretResult, status := Interpret(interpretCtx, o.ModelClient, listenResult.NormalizedQuestion, retrieveResult.Packets, listenResult.EntityMatches, listenResult.Intent, mode)
	interpretCancel()
	reqCtx.Interpret = interpretResult
	recorder.Append(o.record("INTERPRET", mode, language, start, trace.Counts{
		CitationCount: len(interpretResult.Citations),
		NotFound:      interpretResult.NotFound,
		Confidence:    interpretResult.Confidence,
	}, status))
	if resp, records, err, done := o.checkDeadline(totalCtx, reqCtx, recorder, start); done {
		return resp, records, err
	}

	// REFLECT
	reflectResult := Reflect(interpretResult, mode)
	reqCtx.Reflect = reflectResult
	recorder.Append(o.record("REFLECT", mode, language, start, trace.Counts{}, Proceed()))
	if resp, records, err, done := o.checkDeadline(totalCtx, reqCtx, recorder, start); done {
		return resp, records, err
	}

	// FINALIZE
	resp := Finalize(reqCtx)
	return o.finish(totalCtx, reqCtx, resp, recorder, start)
}

// checkDeadline inspects totalCtx after a suspension point. An explicit
// parent cancellation propagates as a bare error with nothing persisted;
// a deadline breach instead produces a FAIL refusal response. done is
// false when the caller should continue to the next stage.
func (o *Orchestrator) checkDeadline(totalCtx context.Context, reqCtx *RequestContext, recorder *trace.Recorder, start time.Time) (*FinalResponse, []trace.StateRecord, error, bool) {
	err := totalCtx.Err()
	if err == nil {
		return nil, nil, nil, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		resp, records, finishErr := o.refuseDeadlineExceeded(reqCtx, recorder, start)
		return resp, records, finishErr, true
	}
	return nil, nil, err, true
}

// refuse builds a hard refusal FinalResponse for a LISTEN-stage failure
// (input_malformed) without running any further stage.
func (o *Orchestrator) refuse(ctx context.Context, reqCtx *RequestContext, recorder *trace.Recorder, start time.Time, reason string) (*FinalResponse, []trace.StateRecord, error) {
	resp := &FinalResponse{
		NotFound:        true,
		AnswerAr:        genericRefusalAr,
		AbstainReason:   reason,
		ContractOutcome: guardrails.Fail,
		ContractReasons: []string{reason},
		Confidence:      ConfidenceLow,
		Purpose:         PurposeResult{Constraints: append([]string{}, MandatoryConstraints...)},
	}
	return o.finish(ctx, reqCtx, resp, recorder, start)
}

// refuseDeadlineExceeded builds the FAIL refusal for a total-deadline
// breach. Unlike an explicit cancellation, this response is
// still finalized and traced: the deadline is an expected, handled
// outcome, not an aborted request.
func (o *Orchestrator) refuseDeadlineExceeded(reqCtx *RequestContext, recorder *trace.Recorder, start time.Time) (*FinalResponse, []trace.StateRecord, error) {
	resp := &FinalResponse{
		NotFound:        true,
		AnswerAr:        genericRefusalAr,
		AbstainReason:   "deadline_exceeded",
		ContractOutcome: guardrails.Fail,
		ContractReasons: []string{"deadline_exceeded"},
		Confidence:      ConfidenceLow,
		Purpose:         PurposeResult{Constraints: append([]string{}, MandatoryConstraints...)},
	}
	records := recorder.Records()
	if o.Sink != nil {
		if finalJSON, err := json.Marshal(resp); err == nil {
			run := trace.RunRecord{
				RequestID:         reqCtx.RequestID,
				Question:          reqCtx.Question,
				Language:          reqCtx.Language,
				Mode:              string(reqCtx.Mode),
				FinalResponseJSON: string(finalJSON),
				StateTrace:        records,
				TimingsMS:         map[string]int64{"total_ms": time.Since(start).Milliseconds()},
				CreatedAt:         start,
			}
			_ = o.Sink.AppendRun(context.Background(), run)
		}
	}
	return resp, records, nil
}

func (o *Orchestrator) finish(ctx context.Context, reqCtx *RequestContext, resp *FinalResponse, recorder *trace.Recorder, start time.Time) (*FinalResponse, []trace.StateRecord, error) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return o.refuseDeadlineExceeded(reqCtx, recorder, start)
		}
		return nil, nil, err
	}

	records := recorder.Records()
	if o.Sink != nil {
		if finalJSON, err := json.Marshal(resp); err == nil {
			run := trace.RunRecord{
				RequestID:         reqCtx.RequestID,
				Question:          reqCtx.Question,
				Language:          reqCtx.Language,
				Mode:              string(reqCtx.Mode),
				FinalResponseJSON: string(finalJSON),
				StateTrace:        records,
				TimingsMS:         map[string]int64{"total_ms": time.Since(start).Milliseconds()},
				CreatedAt:         start,
			}
			_ = o.Sink.AppendRun(ctx, run)
		}
	}
	return resp, records, nil
}

func (o *Orchestrator) record(state string, mode Mode, language string, start time.Time, counts trace.Counts, status StageResult) trace.StateRecord {
	var issues []string
	if status.Status != StatusProceed && status.Reason != "" {
		issues = append(issues, status.Reason)
	}
	slog.Debug("stage complete", "state", state, "mode", string(mode), "status", string(status.Status), "elapsed_s", time.Since(start).Seconds())
	return trace.StateRecord{
		State:    state,
		Mode:     string(mode),
		Language: language,
		ElapsedS: time.Since(start).Seconds(),
		Counts:   counts,
		Issues:   issues,
	}
}
