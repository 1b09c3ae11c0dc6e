// Package agent connects the message bus to the intent pipelines: classify
// each inbound message, run the matching pipeline, and always come back with
// a reply.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"estatebot/internal/domain"
	"estatebot/internal/metrics"
	"estatebot/internal/parse"
	"estatebot/internal/pipeline"
)

const (
	apologyReply = "Sorry, something went wrong on my end. 🙏 Please try again in a moment."
)

// IntentClassifier decides which pipeline a message belongs to. Satisfied by
// *intent.Classifier.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, hasAttachments bool) domain.Intent
}

// Orchestrator routes each message through exactly one pipeline and turns
// the outcome, success or failure, into reply text. Process never panics and
// never returns an empty string.
type Orchestrator struct {
	classifier IntentClassifier
	pipelines  *pipeline.Pipelines
	executor   *pipeline.Executor
	logger     *slog.Logger
}

func NewOrchestrator(classifier IntentClassifier, pipelines *pipeline.Pipelines, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		classifier: classifier,
		pipelines:  pipelines,
		executor:   pipeline.NewExecutor(logger),
		logger:     logger,
	}
}

// Process classifies the message, runs the pipeline for its intent, and
// returns the reply text.
func (o *Orchestrator) Process(ctx context.Context, msg domain.InboundMessage) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("recovered panic while processing message",
				"channel", msg.Channel,
				"sender", msg.SenderID,
				"panic", r,
			)
			reply = apologyReply
		}
	}()

	// A run goes to completion or failure; any timeout belongs to the
	// individual collaborators (provider, classifier, fetcher).
	intent := o.classifier.Classify(ctx, msg.Content, msg.HasAttachments())
	metrics.IntentCounted(string(intent))
	o.logger.Info("message classified",
		"channel", msg.Channel,
		"sender", msg.SenderID,
		"intent", string(intent),
	)

	steps := o.stepsFor(intent, msg)

	start := time.Now()
	_, last, failure := o.executor.Run(ctx, steps)
	metrics.PipelineLatency.Observe(time.Since(start).Seconds())

	if failure != nil {
		metrics.PipelineFailures.Inc()
		return o.failureReply(failure)
	}

	text, ok := last.(string)
	if !ok || strings.TrimSpace(text) == "" {
		o.logger.Error("pipeline produced no reply text", "intent", string(intent))
		return apologyReply
	}
	return text
}

func (o *Orchestrator) stepsFor(intent domain.Intent, msg domain.InboundMessage) []pipeline.Step {
	switch intent {
	case domain.IntentAddListing:
		return o.pipelines.AddListing(msg)
	case domain.IntentAddSeeker:
		return o.pipelines.AddSeeker(msg)
	case domain.IntentQueryListing:
		return o.pipelines.QueryListings(msg)
	case domain.IntentQuerySeeker:
		return o.pipelines.QuerySeekers(msg)
	case domain.IntentFindMatches:
		return o.pipelines.FindMatches(msg)
	default:
		return o.pipelines.General(msg)
	}
}

// failureReply distinguishes "I didn't understand you" from "I broke": a
// parse error becomes a clarifying question, anything else an apology.
func (o *Orchestrator) failureReply(failure *pipeline.StepFailure) string {
	var perr *parse.Error
	if errors.As(failure.Err, &perr) {
		if len(perr.Missing) > 0 {
			return fmt.Sprintf("I couldn't save that yet - I still need: %s. Can you send those details?",
				strings.Join(perr.Missing, ", "))
		}
		if perr.Reason != "" {
			return fmt.Sprintf("I couldn't work with that request: %s. Can you rephrase?", perr.Reason)
		}
		return "I didn't quite catch the details. Can you rephrase with the city, price, and rent or sale?"
	}

	o.logger.Error("pipeline failed",
		"step", failure.StepID,
		"completed", failure.Partial.Completed(),
		"err", failure.Err,
	)
	return apologyReply
}
