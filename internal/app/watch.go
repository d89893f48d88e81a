package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/five82/feedsync/internal/query"
	"github.com/five82/feedsync/internal/social"
)

// Watch follows one conversation and prints every confirmed message to out
// as it arrives through polling. It returns when ctx is done, or with
// social.ErrNotFound when the conversation does not exist.
func Watch(ctx context.Context, opts Options, conversationID string, out io.Writer) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return errors.New("conversation id is required")
	}

	s, err := Boot(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	return follow(ctx, s.Queries, conversationID, out)
}

func follow(ctx context.Context, q *social.Queries, conversationID string, out io.Writer) error {
	res := q.Conversation(conversationID)
	defer res.Close()
	changes := res.Changes()

	p := &printer{out: out, seen: make(map[string]struct{})}
	for {
		if err := p.render(res.View()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
		}
	}
}

type printer struct {
	out     io.Writer
	seen    map[string]struct{}
	offline bool
}

func (p *printer) render(v query.View[*social.Conversation]) error {
	if v.Status == query.Error && errors.Is(v.Err, social.ErrNotFound) {
		return v.Err
	}
	if v.Offline != p.offline {
		p.offline = v.Offline
		if v.Offline {
			fmt.Fprintf(p.out, "-- offline: %v\n", v.Err)
		} else {
			fmt.Fprintln(p.out, "-- back online")
		}
	}
	if !v.HasValue || v.Value == nil {
		return nil
	}
	for _, msg := range v.Value.Messages {
		if msg.Pending {
			continue
		}
		if _, ok := p.seen[msg.ID]; ok {
			continue
		}
		p.seen[msg.ID] = struct{}{}
		fmt.Fprintf(p.out, "[%s] %s: %s\n", msg.Time().Local().Format("15:04:05"), msg.Sender, msg.Content)
	}
	return nil
}
