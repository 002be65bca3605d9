package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/engageworks/engage-go/internal/auth"
	"github.com/engageworks/engage-go/internal/proto"
)

// ErrClosed is returned for requests issued after the client closed.
var ErrClosed = errors.New("backend: client closed")

// SocketOptions configures a socket client.
type SocketOptions struct {
	URL       string
	SiteID    string
	VisitorID string
	Token     *auth.TokenConfig // nil skips the hello token
	Version   string

	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

// SocketClient implements Client over the backend's JSON socket protocol.
type SocketClient struct {
	conn *websocket.Conn
	opts SocketOptions
	log  *zerolog.Logger

	mu      sync.Mutex
	pending map[string]chan reply
	closed  bool

	subMu      sync.Mutex
	stateSubs  []func(EngagementState)
	shareSubs  []func(ScreenShareState)
	offerSubs  []func(MediaUpgradeOffer, AnswerFunc)
	unreadSubs []func(int)
	lastState  EngagementState
	cancelRead context.CancelFunc
	readDone   chan struct{}
	writeMu    sync.Mutex
}

type reply struct {
	data json.RawMessage
	err  error
}

// Dial connects to the backend socket, performs the hello handshake and
// starts the read loop.
func Dial(ctx context.Context, opts SocketOptions, logger *zerolog.Logger) (*SocketClient, error) {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	readCtx, cancelRead := context.WithCancel(context.Background())
	c := &SocketClient{
		conn:       conn,
		opts:       opts,
		log:        logger,
		pending:    make(map[string]chan reply),
		lastState:  EngagementState{Phase: PhaseNone},
		cancelRead: cancelRead,
		readDone:   make(chan struct{}),
	}

	if err := c.hello(ctx); err != nil {
		conn.Close(websocket.StatusPolicyViolation, "hello failed")
		cancelRead()
		return nil, err
	}

	go c.readLoop(readCtx)
	return c, nil
}

func (c *SocketClient) hello(ctx context.Context) error {
	hello := proto.HelloData{
		SiteID:   c.opts.SiteID,
		Version:  c.opts.Version,
		Protocol: proto.ProtocolVersion,
	}
	if c.opts.Token != nil {
		token, err := auth.GenerateToken(c.opts.Token, c.opts.VisitorID, c.opts.SiteID)
		if err != nil {
			return fmt.Errorf("generate visitor token: %w", err)
		}
		hello.Token = token
	}

	payload, err := json.Marshal(hello)
	if err != nil {
		return fmt.Errorf("marshal hello: %w", err)
	}
	return c.write(ctx, proto.Outbound{Type: proto.OutboundTypeHello, Data: payload})
}

func (c *SocketClient) write(ctx context.Context, out proto.Outbound) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsjson.Write(ctx, c.conn, out)
}

// request sends a correlated request and waits for the backend's reply.
func (c *SocketClient) request(ctx context.Context, method string, data any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	id := uuid.NewString()
	ch := make(chan reply, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", method, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	if err := c.write(reqCtx, proto.Outbound{
		Type:   proto.OutboundTypeRequest,
		ID:     id,
		Method: method,
		Data:   payload,
	}); err != nil {
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case <-reqCtx.Done():
		return nil, fmt.Errorf("%s: %w", method, reqCtx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("%s: %w", method, r.err)
		}
		return r.data, nil
	}
}

func (c *SocketClient) readLoop(ctx context.Context) {
	defer close(c.readDone)
	for {
		var in proto.Inbound
		if err := wsjson.Read(ctx, c.conn, &in); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.log.Warn().Err(err).Msg("socket read error")
			}
			c.failPending(err)
			return
		}

		switch in.Type {
		case proto.InboundTypeReply:
			c.deliverReply(in)
		case proto.InboundTypeEvent:
			c.dispatchEvent(in)
		default:
			c.log.Warn().Str("type", in.Type).Msg("unknown inbound type")
		}
	}
}

func (c *SocketClient) deliverReply(in proto.Inbound) {
	c.mu.Lock()
	ch, ok := c.pending[in.ID]
	c.mu.Unlock()
	if !ok {
		c.log.Warn().Str("id", in.ID).Msg("reply for unknown request")
		return
	}

	r := reply{data: in.Data}
	if in.Error != nil {
		r.err = fmt.Errorf("backend %s: %s", in.Error.Code, in.Error.Msg)
	}
	ch <- r
}

func (c *SocketClient) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- reply{err: err}
		delete(c.pending, id)
	}
}

func (c *SocketClient) dispatchEvent(in proto.Inbound) {
	switch in.Event {
	case proto.EventEngagementState:
		var data proto.EngagementStateData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			c.log.Warn().Err(err).Msg("unmarshal engagement_state")
			return
		}
		state := EngagementState{
			Phase:        Phase(data.Phase),
			EngagementID: data.EngagementID,
			Reason:       data.Reason,
			ShowSurvey:   data.ShowSurvey,
		}
		c.subMu.Lock()
		c.lastState = state
		subs := append(([]func(EngagementState))(nil), c.stateSubs...)
		c.subMu.Unlock()
		for _, fn := range subs {
			fn(state)
		}

	case proto.EventUpgradeOffer:
		var data proto.UpgradeOfferData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			c.log.Warn().Err(err).Msg("unmarshal upgrade_offer")
			return
		}
		offer := MediaUpgradeOffer{
			ID:        data.OfferID,
			MediaKind: MediaKind(data.MediaKind),
			Direction: Direction(data.Direction),
		}
		answer := c.answerFunc(offer.ID)
		c.subMu.Lock()
		subs := append(([]func(MediaUpgradeOffer, AnswerFunc))(nil), c.offerSubs...)
		c.subMu.Unlock()
		for _, fn := range subs {
			fn(offer, answer)
		}

	case proto.EventScreenShare:
		var data proto.ScreenShareData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			c.log.Warn().Err(err).Msg("unmarshal screen_share")
			return
		}
		c.subMu.Lock()
		subs := append(([]func(ScreenShareState))(nil), c.shareSubs...)
		c.subMu.Unlock()
		for _, fn := range subs {
			fn(ScreenShareState(data.State))
		}

	case proto.EventUnreadCount:
		var data proto.UnreadCountData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			c.log.Warn().Err(err).Msg("unmarshal unread_count")
			return
		}
		c.subMu.Lock()
		subs := append(([]func(int))(nil), c.unreadSubs...)
		c.subMu.Unlock()
		for _, fn := range subs {
			fn(data.Count)
		}

	default:
		c.log.Debug().Str("event", in.Event).Msg("ignoring unknown event")
	}
}

// answerFunc builds the once-only wire answer for an offer. The coordinator
// owns the exactly-once guarantee; the extra guard keeps a misbehaving host
// from double-sending on the wire.
func (c *SocketClient) answerFunc(offerID string) AnswerFunc {
	var once sync.Once
	return func(accepted bool) {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.RequestTimeout)
			defer cancel()
			if _, err := c.request(ctx, proto.MethodAnswerUpgrade, proto.AnswerUpgradeData{
				OfferID:  offerID,
				Accepted: accepted,
			}); err != nil {
				c.log.Warn().Err(err).Str("offer_id", offerID).Msg("send upgrade answer")
			}
		})
	}
}

// EnqueueForEngagement implements Client.
func (c *SocketClient) EnqueueForEngagement(ctx context.Context, kind MediaKind) (QueueTicket, error) {
	raw, err := c.request(ctx, proto.MethodEnqueue, proto.EnqueueData{MediaKind: string(kind)})
	if err != nil {
		return QueueTicket{}, err
	}
	var data proto.TicketData
	if err := json.Unmarshal(raw, &data); err != nil {
		return QueueTicket{}, fmt.Errorf("unmarshal ticket: %w", err)
	}
	return QueueTicket{ID: data.TicketID, MediaKind: kind}, nil
}

// CancelQueueTicket implements Client.
func (c *SocketClient) CancelQueueTicket(ctx context.Context, ticket QueueTicket) (bool, error) {
	raw, err := c.request(ctx, proto.MethodCancelTicket, proto.TicketData{TicketID: ticket.ID})
	if err != nil {
		return false, err
	}
	var data proto.TicketData
	if err := json.Unmarshal(raw, &data); err != nil {
		return false, fmt.Errorf("unmarshal cancel reply: %w", err)
	}
	return data.Cancelled, nil
}

// CurrentEngagementState implements Client. It asks the backend rather than
// trusting the locally cached push, so callers see backend truth.
func (c *SocketClient) CurrentEngagementState(ctx context.Context) (EngagementState, error) {
	raw, err := c.request(ctx, proto.MethodEngagementState, struct{}{})
	if err != nil {
		return EngagementState{}, err
	}
	var data proto.EngagementStateData
	if err := json.Unmarshal(raw, &data); err != nil {
		return EngagementState{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return EngagementState{
		Phase:        Phase(data.Phase),
		EngagementID: data.EngagementID,
		Reason:       data.Reason,
		ShowSurvey:   data.ShowSurvey,
	}, nil
}

// SubscribeEngagementState implements Client.
func (c *SocketClient) SubscribeEngagementState(fn func(EngagementState)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.stateSubs = append(c.stateSubs, fn)
}

// SubscribeScreenShareState implements Client.
func (c *SocketClient) SubscribeScreenShareState(fn func(ScreenShareState)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.shareSubs = append(c.shareSubs, fn)
}

// SubscribeMediaUpgradeOffers implements Client.
func (c *SocketClient) SubscribeMediaUpgradeOffers(fn func(MediaUpgradeOffer, AnswerFunc)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.offerSubs = append(c.offerSubs, fn)
}

// SubscribeUnreadCount implements Client.
func (c *SocketClient) SubscribeUnreadCount(fn func(int)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.unreadSubs = append(c.unreadSubs, fn)
}

// RespondToScreenShare implements Client.
func (c *SocketClient) RespondToScreenShare(ctx context.Context, accepted bool) error {
	_, err := c.request(ctx, proto.MethodScreenShareReply, proto.ScreenShareReplyData{Accepted: accepted})
	return err
}

// StopScreenShare implements Client.
func (c *SocketClient) StopScreenShare(ctx context.Context) error {
	_, err := c.request(ctx, proto.MethodStopScreenShare, struct{}{})
	return err
}

// FetchEngagementEndSurvey implements Client.
func (c *SocketClient) FetchEngagementEndSurvey(ctx context.Context, engagementID string) (*Survey, error) {
	raw, err := c.request(ctx, proto.MethodFetchSurvey, proto.SurveyRequestData{EngagementID: engagementID})
	if err != nil {
		return nil, err
	}
	var data proto.SurveyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal survey: %w", err)
	}
	if data.Survey == nil {
		return nil, nil
	}
	survey := &Survey{ID: data.Survey.ID, Title: data.Survey.Title}
	for _, q := range data.Survey.Questions {
		survey.Questions = append(survey.Questions, SurveyQuestion{
			ID:       q.ID,
			Text:     q.Text,
			Kind:     SurveyQuestionKind(q.Kind),
			Required: q.Required,
		})
	}
	return survey, nil
}

// SubmitSurveyAnswers implements Client.
func (c *SocketClient) SubmitSurveyAnswers(ctx context.Context, answers []SurveyAnswer, surveyID, engagementID string) error {
	data := proto.SubmitSurveyData{SurveyID: surveyID, EngagementID: engagementID}
	for _, a := range answers {
		data.Answers = append(data.Answers, proto.SurveyAnswer{QuestionID: a.QuestionID, Value: a.Value})
	}
	_, err := c.request(ctx, proto.MethodSubmitSurvey, data)
	return err
}

// Close implements Client.
func (c *SocketClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancelRead()
	err := c.conn.Close(websocket.StatusNormalClosure, "closing")
	<-c.readDone
	c.failPending(ErrClosed)
	return err
}

var _ Client = (*SocketClient)(nil)
