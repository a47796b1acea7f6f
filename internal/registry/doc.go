// Package registry manages the subscription list on behalf of the command
// surface: adding (and seeding) subscriptions, updating their filters,
// removing them, and moving them between installations as YAML.
//
// New subscriptions are seeded by diffing the creator's current feed against
// empty state, so the first polling cycle only reports items published after
// the subscription was created.
package registry
