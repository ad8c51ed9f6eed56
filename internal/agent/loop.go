package agent

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/tuannvm/mcp-creative-agent/internal/common"
	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/mcp"
	"github.com/tuannvm/mcp-creative-agent/internal/monitoring"
	"github.com/tuannvm/mcp-creative-agent/internal/observability"
)

// Run processes one user message on a thread.
//
// The returned error is nil for FINAL_ANSWER, matches ErrStepLimitExceeded
// for STEP_LIMIT_EXCEEDED and carries the cause for ERROR. Result.Answer is
// set in every case. The thread history only changes when the run reaches
// FINAL_ANSWER or STEP_LIMIT_EXCEEDED.
func (a *Agent) Run(ctx context.Context, threadID, text string) (Result, error) {
	th := a.thread(threadID)
	th.run.Lock()
	defer th.run.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	a.setCancel(th, cancel)
	defer func() {
		a.setCancel(th, nil)
		cancel()
	}()

	runCtx, span := a.tracer.StartTrace(runCtx, "agent.run", text, map[string]string{"thread.id": threadID})
	defer span.End()

	a.logger.InfoKV("Processing user input", "thread_id", threadID, "input", logging.TruncateForLog(text, 200))

	start := time.Now()
	result, err := a.run(runCtx, threadID, text)
	a.tracer.SetDuration(span, time.Since(start))
	a.tracer.SetOutput(span, result.Answer)

	monitoring.RecordAgentRun(string(result.State), result.Steps)

	switch result.State {
	case StateFinalAnswer:
		a.tracer.RecordSuccess(span, "final answer")
		a.logger.InfoKV("Successfully processed user input", "thread_id", threadID, "steps", result.Steps)
	case StateStepLimitExceeded:
		a.tracer.RecordError(span, err, "WARNING")
		a.logger.WarnKV("Step limit reached", "thread_id", threadID, "max_steps", a.maxSteps)
	default:
		a.tracer.RecordError(span, err, "ERROR")
		a.logger.ErrorKV("Run failed", "thread_id", threadID, "steps", result.Steps, "error", err)
	}
	return result, err
}

func (a *Agent) run(ctx context.Context, threadID, text string) (Result, error) {
	var history []common.Message
	if a.memoryEnabled {
		stored, err := a.store.Load(ctx, threadID)
		if err != nil {
			loadErr := customErrors.WrapAgentError(err, "memory_unavailable", "failed to load thread history")
			return errorResult(0, loadErr), loadErr
		}
		history = stored
	}
	history = append(history, common.UserMessage(text))

	tools := a.tools.ListTools()
	steps := 0

	for {
		// THINKING
		decision, err := a.think(ctx, history, tools)
		if err != nil {
			return errorResult(steps, err), err
		}

		switch d := decision.(type) {
		case common.FinalAnswer:
			history = append(history, common.AssistantMessage(d.Text))
			a.commit(ctx, threadID, history)
			return Result{Answer: d.Text, State: StateFinalAnswer, Steps: steps}, nil

		case common.ToolCallRequest:
			if steps >= a.maxSteps {
				answer := stepLimitAnswer(history, a.maxSteps)
				history = append(history, common.AssistantMessage(answer))
				a.commit(ctx, threadID, history)
				err := customErrors.NewAgentError(customErrors.CodeStepLimitExceeded,
					fmt.Sprintf("no final answer after %d steps", a.maxSteps)).WithData("max_steps", a.maxSteps)
				return Result{Answer: answer, State: StateStepLimitExceeded, Steps: steps}, err
			}
			steps++

			// TOOL_CALL
			results := a.callTools(ctx, d.Calls)
			if ctxErr := customErrors.FromContext(ctx, customErrors.ErrorDomainAgent, "run interrupted during tool calls"); ctxErr != nil {
				return errorResult(steps, ctxErr), ctxErr
			}
			history = append(history, common.AssistantMessage(d.Text, d.Calls...))
			history = append(history, results...)

		default:
			err := customErrors.NewAgentError(customErrors.CodeInvalidResponse, fmt.Sprintf("unexpected decision %T", decision))
			return errorResult(steps, err), err
		}
	}
}

func (a *Agent) think(ctx context.Context, history []common.Message, tools []common.ToolDescriptor) (common.Decision, error) {
	llmCtx, cancel := context.WithTimeout(ctx, a.llmTimeout)
	defer cancel()

	decision, err := a.model.Generate(llmCtx, history, tools)
	if err != nil {
		// Deadlines and cancellation always surface as timeout or cancelled.
		if customErrors.Is(err, customErrors.ErrTimeout) || customErrors.Is(err, customErrors.ErrCancelled) {
			return nil, err
		}
		if ctxErr := customErrors.FromContext(llmCtx, customErrors.ErrorDomainLLM, "LLM call interrupted"); ctxErr != nil {
			return nil, ctxErr
		}
		if customErrors.IsDomainError(err) {
			return nil, err
		}
		return nil, customErrors.WrapLLMError(err, customErrors.CodeRequestFailed, "LLM request failed")
	}
	if decision == nil {
		return nil, customErrors.NewLLMError(customErrors.CodeInvalidResponse, "LLM returned no decision")
	}
	return decision, nil
}

// callTools runs the calls of one step concurrently and returns the
// tool-result messages in request order. Failures become error payloads.
func (a *Agent) callTools(ctx context.Context, calls []common.ToolCall) []common.Message {
	results := make([]common.Message, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call common.ToolCall) {
			defer wg.Done()
			results[i] = common.ToolResultMessage(call, a.callTool(ctx, call))
		}(i, call)
	}
	wg.Wait()
	return results
}

func (a *Agent) callTool(ctx context.Context, call common.ToolCall) string {
	ctx, span := a.tracer.StartSpan(ctx, "tool."+call.Name, observability.SpanTypeTool, call.ArgumentsJSON(),
		map[string]string{"tool.call_id": call.ID})
	defer span.End()

	toolCtx, cancel := context.WithTimeout(ctx, a.toolTimeout)
	defer cancel()

	a.logger.InfoKV("Calling tool", "tool", call.Name, "call_id", call.ID, "args", logging.TruncateForLog(call.ArgumentsJSON(), 500))

	result, err := a.tools.Invoke(toolCtx, call.Name, call.Arguments)
	if err != nil {
		code, _ := customErrors.GetErrorCode(err)
		a.logger.WarnKV("Tool call failed", "tool", call.Name, "code", code, "error", err)
		a.tracer.RecordError(span, err, "ERROR")
		return mcp.ErrorPayload(err.Error())
	}

	payload := result.Payload()
	a.tracer.SetDuration(span, result.Duration)
	a.tracer.SetOutput(span, payload)
	if result.IsError {
		a.tracer.RecordError(span, fmt.Errorf("tool reported error: %s", result.Text), "WARNING")
	} else {
		a.tracer.RecordSuccess(span, "tool call completed")
	}
	return payload
}

func (a *Agent) commit(ctx context.Context, threadID string, history []common.Message) {
	if !a.memoryEnabled {
		return
	}
	history = trimHistory(history, a.historyLimit)
	// Saved even when the run context was cancelled after the answer.
	if err := a.store.Save(context.WithoutCancel(ctx), threadID, history); err != nil {
		a.logger.ErrorKV("Failed to save thread history", "thread_id", threadID, "error", err)
	}
}

func errorResult(steps int, err error) Result {
	return Result{
		Answer: "Error processing request: " + err.Error(),
		State:  StateError,
		Steps:  steps,
	}
}

// stepLimitAnswer returns the last assistant text of the run, or a notice
func stepLimitAnswer(history []common.Message, maxSteps int) string {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role == common.RoleUser {
			break
		}
		if msg.Role == common.RoleAssistant && msg.Content != "" {
			return msg.Content
		}
	}
	return "Agent stopped after " + strconv.Itoa(maxSteps) + " steps without reaching a final answer."
}
