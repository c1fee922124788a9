package release

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/wojtekgalaj/projen/pkg/types"
)

// Trigger is the policy governing when release workflows fire. Exactly one
// policy applies per Release instance and it is immutable after construction.
type Trigger struct {
	typ         types.TriggerType
	schedule    string
	everyCommit bool
}

// ContinuousTrigger fires on every push to a release branch
func ContinuousTrigger() Trigger {
	return Trigger{typ: types.TriggerContinuous, everyCommit: true}
}

// ScheduledTrigger fires on the given cron expression. With everyCommit set,
// pushes to the branch fire the workflow as well; otherwise only the
// schedule remains. The expression is validated here, at configuration time.
func ScheduledTrigger(cronExpression string, everyCommit bool) (Trigger, error) {
	if _, err := cron.ParseStandard(cronExpression); err != nil {
		return Trigger{}, NewConfigurationError(
			fmt.Sprintf("invalid release schedule %q: %v", cronExpression, err))
	}
	return Trigger{typ: types.TriggerScheduled, schedule: cronExpression, everyCommit: everyCommit}, nil
}

// ManualTrigger disables workflow generation entirely; the release task is
// still emitted for the user to invoke by hand.
func ManualTrigger() Trigger {
	return Trigger{typ: types.TriggerManual}
}

// Type returns the trigger variant
func (t Trigger) Type() types.TriggerType {
	return t.typ
}

// Schedule returns the cron expression for scheduled triggers
func (t Trigger) Schedule() string {
	return t.schedule
}

// EveryCommit reports whether pushes to the branch fire the workflow
func (t Trigger) EveryCommit() bool {
	return t.everyCommit
}

// IsManual reports whether workflow generation is suppressed
func (t Trigger) IsManual() bool {
	return t.typ == types.TriggerManual
}
