package assistant

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lwhela12/the-hive-sub001/config"
	"github.com/lwhela12/the-hive-sub001/internal/store"
	"github.com/lwhela12/the-hive-sub001/models"
)

var aggregatorTracer = otel.Tracer("hive/assistant/aggregator")

// Mode selects how wide the assembled context is.
type Mode string

const (
	// ModeDefault renders personal and community-wide context.
	ModeDefault Mode = "default"
	// ModeOnboarding renders personal context only, keeping first-run
	// prompts small and on-topic.
	ModeOnboarding Mode = "onboarding"
)

// Metadata records what went into a snapshot. Observability only; nothing
// downstream branches on it.
type Metadata struct {
	TokensUsed    int      `json:"tokensUsed"`
	MessageCount  int      `json:"messageCount"`
	SummariesUsed []string `json:"summariesUsed"`
	CacheHits     []string `json:"cacheHits"`
}

// Snapshot is the per-request aggregate handed to the tool loop. Created
// fresh per request and never persisted; only its cached summaries are.
type Snapshot struct {
	Text           string
	RecentMessages []models.ConversationMessage
	Metadata       Metadata
}

// userContext is everything the caller personally sees.
type userContext struct {
	Profile     models.Profile
	Skills      []models.Skill
	Wishes      []models.Wish
	ActionItems []models.ActionItem
}

// communityContext is what the caller's whole community sees.
type communityContext struct {
	Featured   *models.FeaturedProject
	Balance    int64
	Events     []models.Event
	OpenWishes []models.Wish
	PeerSkills []models.Skill
}

// Aggregator orchestrates the source fetchers, the history manager and the
// summary cache into one rendered context document. Every fetch degrades to
// its zero value on failure; the request never dies because one section did.
type Aggregator struct {
	Store      *store.Store
	Cache      *SummaryCache
	Summarizer *Summarizer
	History    *HistoryManager
	Cfg        config.AssistantConfig
	Logger     *log.Logger
	Now        func() time.Time
}

func NewAggregator(st *store.Store, cache *SummaryCache, sum *Summarizer, hist *HistoryManager, cfg config.AssistantConfig, logger *log.Logger) *Aggregator {
	return &Aggregator{Store: st, Cache: cache, Summarizer: sum, History: hist, Cfg: cfg, Logger: logger, Now: time.Now}
}

// Assemble builds the context snapshot for one request.
func (a *Aggregator) Assemble(ctx context.Context, userID, communityID, conversationID string, mode Mode) (Snapshot, error) {
	ctx, span := aggregatorTracer.Start(ctx, "Aggregator.Assemble")
	defer span.End()
	span.SetAttributes(attribute.String("mode", string(mode)))
	recordAssembly(ctx, string(mode))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		user  userContext
		comm  communityContext
		board []models.BoardPost
		rooms []models.RoomMessage
		hist  History

		summaryContent = map[models.SummaryType]string{}
		summaryHits    = map[models.SummaryType]bool{}
	)

	now := a.Now()

	wg.Add(1)
	go func() {
		defer wg.Done()
		user = a.fetchUserContext(ctx, communityID, userID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		hist, err = a.History.Resolve(ctx, communityID, userID, conversationID)
		if err != nil {
			a.Logger.Printf("history resolve degraded to empty: %v", err)
			hist = History{}
		}
	}()

	if mode != ModeOnboarding {
		wg.Add(1)
		go func() {
			defer wg.Done()
			comm = a.fetchCommunityContext(ctx, communityID, userID, now)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			since := now.AddDate(0, 0, -a.Cfg.BoardWindowDays)
			posts, err := a.Store.ListRecentBoardPosts(ctx, communityID, since, a.Cfg.BoardIndexLimit)
			if err != nil {
				a.Logger.Printf("board index fetch degraded to empty: %v", err)
				return
			}
			board = posts
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			since := now.AddDate(0, 0, -a.Cfg.RoomWindowDays)
			msgs, err := a.Store.ListRecentRoomMessages(ctx, communityID, userID, since, a.Cfg.RoomMessageLimit)
			if err != nil {
				a.Logger.Printf("room message fetch degraded to empty: %v", err)
				return
			}
			rooms = msgs
		}()

		for _, typ := range []models.SummaryType{models.SummaryBoardActivity, models.SummaryRoomMessages, models.SummaryMeetings} {
			wg.Add(1)
			go func(typ models.SummaryType) {
				defer wg.Done()
				content, hit, err := a.communitySummary(ctx, communityID, userID, typ, now)
				if err != nil {
					a.Logger.Printf("%s summary degraded to empty: %v", typ, err)
					return
				}
				mu.Lock()
				summaryContent[typ] = content
				summaryHits[typ] = hit
				mu.Unlock()
			}(typ)
		}
	}

	wg.Wait()

	snapshot := Snapshot{RecentMessages: hist.RecentMessages}
	snapshot.Text = a.render(mode, user, comm, board, rooms, hist, summaryContent)

	meta := Metadata{
		TokensUsed:    EstimateTokens(snapshot.Text),
		MessageCount:  hist.TotalCount,
		SummariesUsed: []string{},
		CacheHits:     []string{},
	}
	if hist.Summarized {
		if hist.SummaryHit {
			meta.CacheHits = append(meta.CacheHits, string(models.SummaryConversation))
		} else {
			meta.SummariesUsed = append(meta.SummariesUsed, string(models.SummaryConversation))
		}
	}
	for typ, content := range summaryContent {
		if content == "" {
			continue
		}
		if summaryHits[typ] {
			meta.CacheHits = append(meta.CacheHits, string(typ))
		} else {
			meta.SummariesUsed = append(meta.SummariesUsed, string(typ))
		}
	}
	sort.Strings(meta.SummariesUsed)
	sort.Strings(meta.CacheHits)
	snapshot.Metadata = meta

	span.SetAttributes(
		attribute.Int("tokens", meta.TokensUsed),
		attribute.Int("messages", meta.MessageCount),
	)
	return snapshot, nil
}

// fetchUserContext gathers the caller's personal sections, each degrading
// independently.
func (a *Aggregator) fetchUserContext(ctx context.Context, communityID, userID string) userContext {
	var out userContext
	if p, found, err := a.Store.GetProfile(ctx, communityID, userID); err != nil {
		a.Logger.Printf("profile fetch degraded to empty: %v", err)
	} else if found {
		out.Profile = p
	}
	if skills, err := a.Store.ListSkills(ctx, communityID, userID); err != nil {
		a.Logger.Printf("skills fetch degraded to empty: %v", err)
	} else {
		out.Skills = skills
	}
	if wishes, err := a.Store.ListWishes(ctx, communityID, userID); err != nil {
		a.Logger.Printf("wishes fetch degraded to empty: %v", err)
	} else {
		out.Wishes = wishes
	}
	if items, err := a.Store.ListPendingActionItems(ctx, communityID, userID); err != nil {
		a.Logger.Printf("action item fetch degraded to empty: %v", err)
	} else {
		out.ActionItems = items
	}
	return out
}

// fetchCommunityContext gathers the community-wide sections.
func (a *Aggregator) fetchCommunityContext(ctx context.Context, communityID, userID string, now time.Time) communityContext {
	var out communityContext
	if fp, found, err := a.Store.GetFeaturedProject(ctx, communityID); err != nil {
		a.Logger.Printf("featured project fetch degraded to empty: %v", err)
	} else if found {
		out.Featured = &fp
	}
	if balance, err := a.Store.CommunityBalance(ctx, communityID); err != nil {
		a.Logger.Printf("balance fetch degraded to zero: %v", err)
	} else {
		out.Balance = balance
	}
	if events, err := a.Store.ListUpcomingEvents(ctx, communityID, now.AddDate(0, 0, 30), 10); err != nil {
		a.Logger.Printf("event fetch degraded to empty: %v", err)
	} else {
		out.Events = events
	}
	if wishes, err := a.Store.ListOpenWishes(ctx, communityID, userID); err != nil {
		a.Logger.Printf("open wish fetch degraded to empty: %v", err)
	} else {
		out.OpenWishes = wishes
	}
	if skills, err := a.Store.ListPeerSkills(ctx, communityID, userID); err != nil {
		a.Logger.Printf("peer skill fetch degraded to empty: %v", err)
	} else {
		out.PeerSkills = skills
	}
	return out
}

// communitySummary runs one cache-backed community summary.
func (a *Aggregator) communitySummary(ctx context.Context, communityID, userID string, typ models.SummaryType, now time.Time) (string, bool, error) {
	scope := Scope{CommunityID: communityID, Type: typ}
	if typ.Scoped() {
		scope.UserID = userID
	}
	switch typ {
	case models.SummaryBoardActivity:
		return a.Cache.GetOrGenerate(ctx, scope, 0, func(ctx context.Context) (string, int, time.Time, error) {
			since := now.AddDate(0, 0, -a.Cfg.BoardWindowDays)
			posts, err := a.Store.ListRecentBoardPosts(ctx, communityID, since, 50)
			if err != nil {
				return "", 0, time.Time{}, err
			}
			content, err := a.Summarizer.SummarizeBoardPosts(ctx, posts)
			if err != nil {
				return "", 0, time.Time{}, err
			}
			return content, len(posts), newestPostAt(posts), nil
		})
	case models.SummaryRoomMessages:
		return a.Cache.GetOrGenerate(ctx, scope, 0, func(ctx context.Context) (string, int, time.Time, error) {
			since := now.AddDate(0, 0, -a.Cfg.RoomWindowDays)
			msgs, err := a.Store.ListRecentRoomMessages(ctx, communityID, userID, since, 200)
			if err != nil {
				return "", 0, time.Time{}, err
			}
			content, err := a.Summarizer.SummarizeRoomMessages(ctx, msgs)
			if err != nil {
				return "", 0, time.Time{}, err
			}
			var last time.Time
			if n := len(msgs); n > 0 {
				last = msgs[n-1].CreatedAt
			}
			return content, len(msgs), last, nil
		})
	case models.SummaryMeetings:
		return a.Cache.GetOrGenerate(ctx, scope, 0, func(ctx context.Context) (string, int, time.Time, error) {
			meetings, err := a.Store.ListRecentMeetings(ctx, communityID, now.AddDate(0, 0, -30), 20)
			if err != nil {
				return "", 0, time.Time{}, err
			}
			content, err := a.Summarizer.SummarizeMeetings(ctx, meetings)
			if err != nil {
				return "", 0, time.Time{}, err
			}
			var last time.Time
			if len(meetings) > 0 {
				last = meetings[0].HeldAt
			}
			return content, len(meetings), last, nil
		})
	default:
		return "", false, fmt.Errorf("unsupported community summary type: %s", typ)
	}
}

func newestPostAt(posts []models.BoardPost) time.Time {
	var newest time.Time
	for _, p := range posts {
		if p.CreatedAt.After(newest) {
			newest = p.CreatedAt
		}
	}
	return newest
}

// Section headers. Onboarding mode renders only the personal group; the
// onboarding-scoping test keys off these names.
const (
	sectionProfile         = "## YOUR PROFILE"
	sectionSkills          = "## YOUR SKILLS"
	sectionWishes          = "## YOUR WISHES"
	sectionActionItems     = "## YOUR PENDING ACTION ITEMS"
	sectionConversation    = "## EARLIER CONVERSATION SUMMARY"
	sectionFeatured        = "## FEATURED PROJECT"
	sectionCommunity       = "## COMMUNITY BALANCE & EVENTS"
	sectionOpenWishes      = "## OPEN COMMUNITY WISHES"
	sectionPeerSkills      = "## SKILLS AROUND THE COMMUNITY"
	sectionBoardIndex      = "## RECENT BOARD POSTS"
	sectionBoardSummary    = "## BOARD ACTIVITY SUMMARY"
	sectionRoomSummary     = "## ROOM ACTIVITY SUMMARY"
	sectionRoomMessages    = "## RECENT ROOM MESSAGES"
	sectionMeetingsSummary = "## MEETING NOTES SUMMARY"
)

// render lays the gathered material out as one plain-text document. Section
// order tracks prompt quality: personal state first, live conversation
// context last.
func (a *Aggregator) render(mode Mode, user userContext, comm communityContext, board []models.BoardPost, rooms []models.RoomMessage, hist History, summaries map[models.SummaryType]string) string {
	var b strings.Builder

	b.WriteString(sectionProfile + "\n")
	if user.Profile.DisplayName != "" {
		fmt.Fprintf(&b, "Name: %s\n", user.Profile.DisplayName)
	}
	if user.Profile.Bio != "" {
		fmt.Fprintf(&b, "Bio: %s\n", user.Profile.Bio)
	}
	fmt.Fprintf(&b, "Onboarding complete: %t\n", user.Profile.OnboardingComplete)
	if user.Profile.Notes != "" {
		fmt.Fprintf(&b, "Personal notes: %s\n", user.Profile.Notes)
	}

	b.WriteString("\n" + sectionSkills + "\n")
	if len(user.Skills) == 0 {
		b.WriteString("(none recorded yet)\n")
	}
	for _, s := range user.Skills {
		fmt.Fprintf(&b, "- %s", s.Name)
		if s.Detail != "" {
			fmt.Fprintf(&b, ": %s", s.Detail)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + sectionWishes + "\n")
	if len(user.Wishes) == 0 {
		b.WriteString("(none recorded yet)\n")
	}
	for _, w := range user.Wishes {
		fmt.Fprintf(&b, "- [%s/%s] %s", w.Visibility, w.Status, w.Title)
		if w.Detail != "" {
			fmt.Fprintf(&b, ": %s", w.Detail)
		}
		b.WriteString("\n")
	}

	if len(user.ActionItems) > 0 {
		b.WriteString("\n" + sectionActionItems + "\n")
		for _, it := range user.ActionItems {
			fmt.Fprintf(&b, "- %s\n", it.Description)
		}
	}

	if hist.Summary != "" {
		b.WriteString("\n" + sectionConversation + "\n")
		b.WriteString(hist.Summary + "\n")
	}

	if mode == ModeOnboarding {
		return b.String()
	}

	if comm.Featured != nil {
		b.WriteString("\n" + sectionFeatured + "\n")
		fmt.Fprintf(&b, "%s (held by %s since %s)", comm.Featured.Title, comm.Featured.UserID, comm.Featured.StartedAt.Format("2006-01-02"))
		if comm.Featured.Detail != "" {
			fmt.Fprintf(&b, ": %s", comm.Featured.Detail)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + sectionCommunity + "\n")
	fmt.Fprintf(&b, "Balance: %d\n", comm.Balance)
	for _, e := range comm.Events {
		fmt.Fprintf(&b, "- %s at %s (%s)\n", e.Title, e.StartsAt.Format(time.RFC1123), e.Location)
	}

	if len(comm.OpenWishes) > 0 {
		b.WriteString("\n" + sectionOpenWishes + "\n")
		for _, w := range comm.OpenWishes {
			fmt.Fprintf(&b, "- %s", w.Title)
			if w.Detail != "" {
				fmt.Fprintf(&b, ": %s", w.Detail)
			}
			b.WriteString("\n")
		}
	}

	if len(comm.PeerSkills) > 0 {
		b.WriteString("\n" + sectionPeerSkills + "\n")
		for _, s := range comm.PeerSkills {
			fmt.Fprintf(&b, "- %s", s.Name)
			if s.Detail != "" {
				fmt.Fprintf(&b, ": %s", s.Detail)
			}
			b.WriteString("\n")
		}
	}

	if len(board) > 0 {
		b.WriteString("\n" + sectionBoardIndex + "\n")
		for _, p := range board {
			pin := ""
			if p.Pinned {
				pin = " [pinned]"
			}
			fmt.Fprintf(&b, "- %s by %s (%s, %d replies)%s\n", p.Title, p.AuthorName, p.Category, p.ReplyCount, pin)
		}
	}

	if s := summaries[models.SummaryBoardActivity]; s != "" {
		b.WriteString("\n" + sectionBoardSummary + "\n")
		b.WriteString(s + "\n")
	}
	if s := summaries[models.SummaryRoomMessages]; s != "" {
		b.WriteString("\n" + sectionRoomSummary + "\n")
		b.WriteString(s + "\n")
	}

	if len(rooms) > 0 {
		b.WriteString("\n" + sectionRoomMessages + "\n")
		byRoom := map[string][]models.RoomMessage{}
		var order []string
		for _, m := range rooms {
			if _, seen := byRoom[m.RoomName]; !seen {
				order = append(order, m.RoomName)
			}
			byRoom[m.RoomName] = append(byRoom[m.RoomName], m)
		}
		for _, room := range order {
			fmt.Fprintf(&b, "[%s]\n", room)
			for _, m := range byRoom[room] {
				fmt.Fprintf(&b, "  %s: %s\n", m.AuthorName, m.Body)
			}
		}
	}

	if s := summaries[models.SummaryMeetings]; s != "" {
		b.WriteString("\n" + sectionMeetingsSummary + "\n")
		b.WriteString(s + "\n")
	}

	return b.String()
}
