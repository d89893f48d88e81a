// Package ui is the feedsync terminal client, built on Bubble Tea.
//
// The screen has a conversation list on the left and the open thread on the
// right, with a composer under the thread and an optional log pane at the
// bottom. The header shows whether the actor is reachable and how fresh the
// open thread is (syncing, updated Ns ago, stale or offline).
//
// # Data flow
//
// The model never fetches on its own. It binds two query resources, the
// conversation list and the open thread, and listens to their coalescing
// change signals through a waiting tea.Cmd that is re-issued after every
// update. Opening another conversation switches the thread resource's key,
// which tears down the old poll and discards any response still in flight for
// it. Sending runs the sendMessage mutator in a command: the pending message
// appears at once, and a failure rolls it back and restores the composer text.
//
// # Keys
//
//	j/k, up/down   move through conversations
//	enter          open the highlighted conversation, or send from the composer
//	tab / esc      switch between list and composer
//	r              refetch the list and thread now
//	R              clear the cache; every view refetches
//	l              toggle the log pane
//	T              cycle themes (saved to prefs)
//	?              help
//	q, ctrl+c      quit
package ui
