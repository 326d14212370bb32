// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Subscription lifecycle and notification delivery.7.

package server

import (
	"context"
	"time"

	"github.com/OpenPrinting/go-ippd/events"
	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/store"
	"github.com/OpenPrinting/goipp"
)

// resolveSubscription finds the subscription named by
// notify-subscription-id in the operation group.
func resolveSubscription(rc *reqContext) (*store.Subscription, *ippError) {
	id, ok := operationInt(rc.msg, "notify-subscription-id")
	if !ok {
		return nil, errBadRequest
	}
	sub, found := rc.srv.Sys.Subscriptions.Get(id)
	if !found {
		return nil, errNotFound
	}
	return sub, nil
}

func subscriptionOwnerFromTarget(rc *reqContext) (store.SubscriptionOwnerKind, *store.Printer, *store.Job) {
	switch rc.target.Kind {
	case ipp.TargetJob:
		return store.OwnerJob, rc.printer, rc.job
	case ipp.TargetPrinter:
		return store.OwnerPrinter, rc.printer, nil
	default:
		return store.OwnerSystem, nil, nil
	}
}

func handleCreateSubscriptions(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	ownerKind, printer, job := subscriptionOwnerFromTarget(rc)

	subGroups := ipp.GroupsByTag(rc.msg, goipp.TagSubscriptionGroup)
	if len(subGroups) == 0 {
		return nil, errBadRequest
	}

	rb := rc.newResponse(goipp.StatusOk)
	for _, sg := range subGroups {
		id := rc.srv.Sys.SubscriptionIDs.Next()
		sub := store.NewSubscription(id, 64)
		sub.Owner = ownerKind
		sub.Printer = printer
		sub.Job = job
		sub.Username = EffectiveUsername(rc.id, "")
		sub.Charset = rc.charset
		sub.Language = rc.language

		if events, ok := sg.Find("notify-events"); ok {
			for _, v := range events.Values {
				sub.Events[v.V.String()] = true
			}
		} else {
			sub.Events["all"] = true
		}
		if lease, ok := sg.Find("notify-lease-duration"); ok && len(lease.Values) > 0 {
			if n, ok := lease.Values[0].V.(goipp.Integer); ok {
				sub.Renew(int(n), time.Now())
			}
		} else {
			sub.Renew(86400, time.Now())
		}

		rc.srv.Sys.Subscriptions.Put(id, sub)

		respGroup := ipp.NewAttributeSet(ipp.GroupSubscription)
		respGroup.Add(ipp.NewAttribute("notify-subscription-id", goipp.TagInteger, goipp.Integer(id)))
		rb.AddGroup(respGroup)
	}
	return rb, nil
}

func subscriptionAttrGroup(sub *store.Subscription) *ipp.AttributeSet {
	sub.RLock()
	defer sub.RUnlock()

	g := ipp.NewAttributeSet(ipp.GroupSubscription)
	g.Add(ipp.NewAttribute("notify-subscription-id", goipp.TagInteger, goipp.Integer(sub.ID)))
	ev := ipp.Attribute{Name: "notify-events"}
	for e := range sub.Events {
		ev.Values.Add(goipp.TagKeyword, goipp.String(e))
	}
	g.Add(ev)
	lease := 0
	if sub.Lease > 0 {
		lease = int(sub.Lease / time.Second)
	}
	g.Add(ipp.NewAttribute("notify-lease-duration", goipp.TagInteger, goipp.Integer(lease)))
	return g
}

func handleGetSubscriptionAttributes(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	sub, err := resolveSubscription(rc)
	if err != nil {
		return nil, err
	}
	rb := rc.newResponse(goipp.StatusOk)
	rb.AddGroup(subscriptionAttrGroup(sub))
	return rb, nil
}

func handleGetSubscriptions(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	ownerKind, printer, job := subscriptionOwnerFromTarget(rc)

	rb := rc.newResponse(goipp.StatusOk)
	rc.srv.Sys.Subscriptions.Each(func(_ int, sub *store.Subscription) bool {
		sub.RLock()
		owner, subPrinter, subJob := sub.Owner, sub.Printer, sub.Job
		sub.RUnlock()

		switch ownerKind {
		case store.OwnerJob:
			if subJob != job {
				return true
			}
		case store.OwnerPrinter:
			if owner == store.OwnerJob || subPrinter != printer {
				return true
			}
		}
		rb.AddGroup(subscriptionAttrGroup(sub))
		return true
	})
	return rb, nil
}

func handleRenewSubscription(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	sub, err := resolveSubscription(rc)
	if err != nil {
		return nil, err
	}
	lease, ok := operationInt(rc.msg, "notify-lease-duration")
	if !ok {
		lease = 86400
	}
	sub.Renew(lease, time.Now())
	return rc.newResponse(goipp.StatusOk), nil
}

func handleCancelSubscription(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	sub, err := resolveSubscription(rc)
	if err != nil {
		return nil, err
	}
	sub.Lock()
	sub.ClearOwner()
	sub.Unlock()
	rc.srv.Sys.Subscriptions.Delete(sub.ID)
	return rc.newResponse(goipp.StatusOk), nil
}

// gatherNotifications builds one response group per retained event
// numbered since[id]+1 or later, for every subscription id named.
func gatherNotifications(rc *reqContext, ids []int, since map[int]int) (*ipp.ResponseBuilder, bool) {
	rb := rc.newResponse(goipp.StatusOk)
	any := false
	for _, id := range ids {
		sub, found := rc.srv.Sys.Subscriptions.Get(id)
		if !found {
			continue
		}
		sub.RLock()
		evs := sub.EventsSince(since[id] + 1)
		sub.RUnlock()
		for _, ev := range evs {
			any = true
			g := ipp.NewAttributeSet(ipp.GroupEvent)
			g.Add(ipp.NewAttribute("notify-subscription-id", goipp.TagInteger, goipp.Integer(id)))
			g.Add(ipp.NewAttribute("notify-sequence-number", goipp.TagInteger, goipp.Integer(ev.Seq)))
			g.Add(ipp.NewAttribute("notify-subscribed-event", goipp.TagKeyword, goipp.String(ev.Action)))
			rb.AddGroup(g)
		}
	}
	return rb, any
}

// handleGetNotifications implements the pull-mode delivery // §4.7 describes: return immediately if any requested subscription
// already has unseen events, otherwise block on the event engine for
// up to events.MaxWait and return whatever arrived (possibly nothing).
func handleGetNotifications(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	ids, ok := operationAttrListInts(rc.msg, "notify-subscription-ids")
	if !ok {
		return nil, errBadRequest
	}
	since := map[int]int{}
	if seqs, ok := operationAttrListInts(rc.msg, "notify-sequence-numbers"); ok {
		for i, id := range ids {
			if i < len(seqs) && seqs[i] > 0 {
				since[id] = seqs[i] - 1
			}
		}
	}

	if rb, found := gatherNotifications(rc, ids, since); found {
		return rb, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, events.MaxWait)
	defer cancel()
	rc.srv.Events.Wait(waitCtx)

	rb, _ := gatherNotifications(rc, ids, since)
	return rb, nil
}

// operationAttrListInts parses a 1setOf integer operation attribute.
func operationAttrListInts(m *goipp.Message, name string) ([]int, bool) {
	strs, ok := operationAttrList(m, name)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(strs))
	for _, s := range strs {
		n, ok := parsePositiveInt(s)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
