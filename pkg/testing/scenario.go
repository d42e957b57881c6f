// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides helpers for exercising agents in tests: a
// scripted completion provider, declarative task scenarios, an event
// collector, and assertion helpers over task results and workflow audits.
//
// Example usage:
//
//	scenario := ergontest.NewScenario("happy path").
//	    AddTask(core.NewTask("analyze", map[string]any{"description": "demo"})).
//	    ExpectAllSucceeded().
//	    ExpectFinalState(core.StateIdle)
//
//	scenario.Run(t, agent).Assert(t)
package testing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jllopis/ergon/pkg/core"
)

// Scenario drives an agent through an ordered task list and checks
// expectations against the collected results.
type Scenario struct {
	name          string
	tasks         []*core.Task
	ctx           context.Context
	timeout       time.Duration
	expectations  []Expectation
	setupFuncs    []func() error
	teardownFuncs []func() error
}

// Expectation is one condition checked against a finished scenario.
type Expectation interface {
	// Check verifies the expectation against the result.
	Check(result *ScenarioResult) error
	// Description returns a human-readable description of the expectation.
	Description() string
}

// ScenarioResult is the outcome of running a scenario.
type ScenarioResult struct {
	Results  []core.TaskResult
	Status   core.StatusInfo
	Duration time.Duration

	scenario *Scenario
}

// NewScenario creates a scenario with a 30 second default timeout.
func NewScenario(name string) *Scenario {
	return &Scenario{
		name:    name,
		ctx:     context.Background(),
		timeout: 30 * time.Second,
	}
}

// AddTask appends a task to the scenario's execution order.
func (s *Scenario) AddTask(task *core.Task) *Scenario {
	s.tasks = append(s.tasks, task)
	return s
}

// WithTasks replaces the scenario's task list.
func (s *Scenario) WithTasks(tasks ...*core.Task) *Scenario {
	s.tasks = tasks
	return s
}

// WithContext sets the base context for the run.
func (s *Scenario) WithContext(ctx context.Context) *Scenario {
	s.ctx = ctx
	return s
}

// WithTimeout bounds the whole run.
func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// WithSetup adds a setup function to run before the scenario.
func (s *Scenario) WithSetup(fn func() error) *Scenario {
	s.setupFuncs = append(s.setupFuncs, fn)
	return s
}

// WithTeardown adds a teardown function to run after the scenario.
func (s *Scenario) WithTeardown(fn func() error) *Scenario {
	s.teardownFuncs = append(s.teardownFuncs, fn)
	return s
}

// Expect adds an expectation to the scenario.
func (s *Scenario) Expect(exp Expectation) *Scenario {
	s.expectations = append(s.expectations, exp)
	return s
}

// ExpectAllSucceeded expects every task result to report success.
func (s *Scenario) ExpectAllSucceeded() *Scenario {
	return s.Expect(&allSucceededExpectation{})
}

// ExpectSucceeded expects the i-th task (0-based) to succeed.
func (s *Scenario) ExpectSucceeded(i int) *Scenario {
	return s.Expect(&taskOutcomeExpectation{index: i, success: true})
}

// ExpectFailed expects the i-th task to fail with an error matching matcher.
// A nil matcher accepts any failure.
func (s *Scenario) ExpectFailed(i int, matcher StringMatcher) *Scenario {
	return s.Expect(&taskOutcomeExpectation{index: i, success: false, matcher: matcher})
}

// ExpectResult expects the i-th task's result, rendered with fmt.Sprint, to
// match matcher.
func (s *Scenario) ExpectResult(i int, matcher StringMatcher) *Scenario {
	return s.Expect(&resultExpectation{index: i, matcher: matcher})
}

// ExpectFinalState expects the agent to end the run in the given state.
func (s *Scenario) ExpectFinalState(state core.AgentState) *Scenario {
	return s.Expect(&finalStateExpectation{state: state})
}

// ExpectTasksCompleted expects the agent's completed counter to equal n.
func (s *Scenario) ExpectTasksCompleted(n int64) *Scenario {
	return s.Expect(&counterExpectation{name: "completed", want: n, get: func(st core.StatusInfo) int64 { return st.TasksCompleted }})
}

// ExpectTasksFailed expects the agent's failed counter to equal n.
func (s *Scenario) ExpectTasksFailed(n int64) *Scenario {
	return s.Expect(&counterExpectation{name: "failed", want: n, get: func(st core.StatusInfo) int64 { return st.TasksFailed }})
}

// ExpectMaxDuration expects the whole run to finish within d.
func (s *Scenario) ExpectMaxDuration(d time.Duration) *Scenario {
	return s.Expect(&maxDurationExpectation{max: d})
}

// Run executes the scenario's tasks in order against the agent. Execution
// continues past failed tasks; expectations decide what failure means.
func (s *Scenario) Run(t *testing.T, agent core.Agent) *ScenarioResult {
	t.Helper()

	for _, setup := range s.setupFuncs {
		if err := setup(); err != nil {
			t.Fatalf("scenario %q setup failed: %v", s.name, err)
		}
	}
	defer func() {
		for _, teardown := range s.teardownFuncs {
			if err := teardown(); err != nil {
				t.Errorf("scenario %q teardown failed: %v", s.name, err)
			}
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	results := make([]core.TaskResult, 0, len(s.tasks))
	for _, task := range s.tasks {
		results = append(results, agent.ExecuteTask(ctx, task))
	}

	return &ScenarioResult{
		Results:  results,
		Status:   agent.StatusInfo(),
		Duration: time.Since(start),
		scenario: s,
	}
}

// Assert checks every expectation and reports failures to the test.
func (r *ScenarioResult) Assert(t *testing.T) {
	t.Helper()
	for _, exp := range r.scenario.expectations {
		if err := exp.Check(r); err != nil {
			t.Errorf("scenario %q: expectation %q failed: %v", r.scenario.name, exp.Description(), err)
		}
	}
}

func (r *ScenarioResult) result(i int) (core.TaskResult, error) {
	if i < 0 || i >= len(r.Results) {
		return core.TaskResult{}, fmt.Errorf("task index %d out of range (%d results)", i, len(r.Results))
	}
	return r.Results[i], nil
}

// StringMatcher defines how strings are matched in expectations.
type StringMatcher interface {
	Match(s string) bool
	Description() string
}

// Contains returns a matcher that checks if the string contains the substring.
func Contains(substr string) StringMatcher {
	return &containsMatcher{substr: substr}
}

// Equals returns a matcher that checks exact string equality.
func Equals(expected string) StringMatcher {
	return &equalsMatcher{expected: expected}
}

// Regex returns a matcher that checks against a regular expression.
func Regex(pattern string) StringMatcher {
	return &regexMatcher{pattern: pattern}
}

// HasPrefix returns a matcher that checks if the string has the given prefix.
func HasPrefix(prefix string) StringMatcher {
	return &prefixMatcher{prefix: prefix}
}

// HasSuffix returns a matcher that checks if the string has the given suffix.
func HasSuffix(suffix string) StringMatcher {
	return &suffixMatcher{suffix: suffix}
}

type containsMatcher struct {
	substr string
}

func (m *containsMatcher) Match(s string) bool {
	return strings.Contains(s, m.substr)
}

func (m *containsMatcher) Description() string {
	return fmt.Sprintf("contains %q", m.substr)
}

type equalsMatcher struct {
	expected string
}

func (m *equalsMatcher) Match(s string) bool {
	return s == m.expected
}

func (m *equalsMatcher) Description() string {
	return fmt.Sprintf("equals %q", m.expected)
}

type regexMatcher struct {
	pattern string
}

func (m *regexMatcher) Match(s string) bool {
	re, err := regexp.Compile(m.pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func (m *regexMatcher) Description() string {
	return fmt.Sprintf("matches regex %q", m.pattern)
}

type prefixMatcher struct {
	prefix string
}

func (m *prefixMatcher) Match(s string) bool {
	return strings.HasPrefix(s, m.prefix)
}

func (m *prefixMatcher) Description() string {
	return fmt.Sprintf("has prefix %q", m.prefix)
}

type suffixMatcher struct {
	suffix string
}

func (m *suffixMatcher) Match(s string) bool {
	return strings.HasSuffix(s, m.suffix)
}

func (m *suffixMatcher) Description() string {
	return fmt.Sprintf("has suffix %q", m.suffix)
}

// Expectation implementations

type allSucceededExpectation struct{}

func (e *allSucceededExpectation) Check(r *ScenarioResult) error {
	for i, res := range r.Results {
		if !res.Success {
			return fmt.Errorf("task %d failed: %s", i, res.Error)
		}
	}
	return nil
}

func (e *allSucceededExpectation) Description() string {
	return "all tasks succeed"
}

type taskOutcomeExpectation struct {
	index   int
	success bool
	matcher StringMatcher
}

func (e *taskOutcomeExpectation) Check(r *ScenarioResult) error {
	res, err := r.result(e.index)
	if err != nil {
		return err
	}
	if res.Success != e.success {
		if e.success {
			return fmt.Errorf("task %d failed: %s", e.index, res.Error)
		}
		return fmt.Errorf("task %d succeeded, expected failure", e.index)
	}
	if !e.success && e.matcher != nil && !e.matcher.Match(res.Error) {
		return fmt.Errorf("task %d error %q does not match: %s", e.index, res.Error, e.matcher.Description())
	}
	return nil
}

func (e *taskOutcomeExpectation) Description() string {
	if e.success {
		return fmt.Sprintf("task %d succeeds", e.index)
	}
	return fmt.Sprintf("task %d fails", e.index)
}

type resultExpectation struct {
	index   int
	matcher StringMatcher
}

func (e *resultExpectation) Check(r *ScenarioResult) error {
	res, err := r.result(e.index)
	if err != nil {
		return err
	}
	rendered := fmt.Sprint(res.Result)
	if !e.matcher.Match(rendered) {
		return fmt.Errorf("task %d result %q does not match: %s", e.index, rendered, e.matcher.Description())
	}
	return nil
}

func (e *resultExpectation) Description() string {
	return fmt.Sprintf("task %d result %s", e.index, e.matcher.Description())
}

type finalStateExpectation struct {
	state core.AgentState
}

func (e *finalStateExpectation) Check(r *ScenarioResult) error {
	if r.Status.State != e.state {
		return fmt.Errorf("final state %q, expected %q", r.Status.State, e.state)
	}
	return nil
}

func (e *finalStateExpectation) Description() string {
	return fmt.Sprintf("final state %q", e.state)
}

type counterExpectation struct {
	name string
	want int64
	get  func(core.StatusInfo) int64
}

func (e *counterExpectation) Check(r *ScenarioResult) error {
	if got := e.get(r.Status); got != e.want {
		return fmt.Errorf("tasks %s: got %d, want %d", e.name, got, e.want)
	}
	return nil
}

func (e *counterExpectation) Description() string {
	return fmt.Sprintf("%d tasks %s", e.want, e.name)
}

type maxDurationExpectation struct {
	max time.Duration
}

func (e *maxDurationExpectation) Check(r *ScenarioResult) error {
	if r.Duration > e.max {
		return fmt.Errorf("duration %v exceeds maximum %v", r.Duration, e.max)
	}
	return nil
}

func (e *maxDurationExpectation) Description() string {
	return fmt.Sprintf("duration <= %v", e.max)
}

// EventCollector records semantic events. It implements core.EventEmitter,
// so it attaches directly via agent.WithEventEmitter.
type EventCollector struct {
	mu     sync.RWMutex
	events []core.Event
}

// NewEventCollector creates an empty collector.
func NewEventCollector() *EventCollector {
	return &EventCollector{}
}

// Emit implements core.EventEmitter.
func (c *EventCollector) Emit(_ context.Context, event core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns all collected events.
func (c *EventCollector) Events() []core.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Event, len(c.events))
	copy(out, c.events)
	return out
}

// EventTypes returns the types of all collected events in emission order.
func (c *EventCollector) EventTypes() []core.EventType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	types := make([]core.EventType, len(c.events))
	for i, ev := range c.events {
		types[i] = ev.Type
	}
	return types
}

// Has reports whether an event of the given type was collected.
func (c *EventCollector) Has(eventType core.EventType) bool {
	return c.CountOf(eventType) > 0
}

// CountOf returns how many events of the given type were collected.
func (c *EventCollector) CountOf(eventType core.EventType) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, ev := range c.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

// Count returns the number of collected events.
func (c *EventCollector) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Reset clears all collected events.
func (c *EventCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
