// Package notifications delivers assembled messages to subscribers.
//
// The default implementation publishes to ntfy, using the subscriber id as
// the topic on the configured server, and degrades to a no-op when no server
// is configured. A message is an ordered list of parts; text parts become the
// message body, the first attachment (a rendered card or an image URL) rides
// along with it, and any further attachments follow as separate messages in
// order.
package notifications
