package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"hrchat/config"
	"hrchat/internal/api"
	"hrchat/internal/auth"
	"hrchat/internal/chatcore"
	"hrchat/internal/domain/thread"
	"hrchat/internal/events"
	"hrchat/internal/prefs"
	"hrchat/internal/redis"
	"hrchat/internal/transport/socket"
	"hrchat/pkg/logger"

	"go.uber.org/zap"
)

const help = `Commands:
  /threads               list conversations
  /open <n|thread id>    open a conversation
  /dm <user id>          start or reopen a direct conversation
  /group <name> <ids>    create a group, ids comma separated
  /who                   members of the open conversation
  /quit                  leave
Anything else is sent to the open conversation.
`

const lastThreadTTL = 30 * 24 * time.Hour

func main() {
	cfg := config.LoadConfig()
	if cfg.ChatToken == "" {
		log.Fatal("CHAT_TOKEN is required")
	}

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	claims, err := auth.ParseUnverified(cfg.ChatToken)
	if err != nil {
		log.Fatalf("Invalid CHAT_TOKEN: %v", err)
	}
	self := claims.Member()
	role := self.Role
	if role == "" {
		role = cfg.ChatRole
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store chatcore.LastThreadStore = prefs.NewMemoryStore()
	if rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}); err == nil {
		defer rdb.Close()
		store = prefs.NewRedisStore(rdb, lastThreadTTL)
	} else {
		l.Debug("last thread kept in memory", zap.Error(err))
	}

	client := api.NewClient(api.Config{BaseURL: cfg.ChatAPIURL, Token: cfg.ChatToken, Timeout: cfg.HTTPTimeout}, l)
	dispatcher := events.NewDispatcher()
	conn := socket.NewClient(socket.Config{URL: cfg.ChatWSURL, Token: cfg.ChatToken}, dispatcher, l)

	changes := make(chan chatcore.Change, 64)
	session := chatcore.NewSession(chatcore.Options{
		Self:      self,
		Role:      role,
		API:       client,
		Transport: conn,
		Prefs:     store,
		Logger:    l,
		OnChange: func(c chatcore.Change) {
			select {
			case changes <- c:
			default:
			}
		},
	})
	session.Bind(dispatcher)
	conn.SetRejoinSource(session.KnownThreadIDs)
	conn.OnStateChange(session.HandleConnection)

	go session.Run(ctx)
	go func() {
		if err := conn.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Printf("! gateway refused the connection: %v\n", err)
			stop()
		}
	}()

	v := newView(session)
	go v.follow(ctx, changes)

	fmt.Printf("Signed in as %s (%s)\n", self.Name, self.ID)
	if err := session.Load(ctx); err != nil {
		fmt.Printf("! %v\n", err)
	}
	v.listThreads()
	fmt.Print(help)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := v.command(ctx, strings.TrimSpace(line)); quit {
				return
			}
		}
	}
}

// view prints session state to the terminal.
type view struct {
	session *chatcore.Session

	mu      sync.Mutex // guards printed, thread, typing
	printed map[string]bool
	thread  string
	typing  string
}

func newView(s *chatcore.Session) *view {
	return &view{session: s, printed: make(map[string]bool)}
}

func (v *view) command(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	v.session.Interact()

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true
	case "/help":
		fmt.Print(help)
	case "/threads":
		v.listThreads()
	case "/who":
		t, ok := v.session.Thread(v.session.Active())
		if !ok {
			fmt.Println("! no conversation open")
			return false
		}
		for _, m := range v.session.Roster(t) {
			fmt.Printf("  %s (%s)\n", m.Name, m.ID)
		}
	case "/open":
		if len(fields) < 2 {
			fmt.Println("! usage: /open <n|thread id>")
			return false
		}
		v.open(ctx, v.resolve(fields[1]))
	case "/dm":
		if len(fields) < 2 {
			fmt.Println("! usage: /dm <user id>")
			return false
		}
		t, err := v.session.StartDirect(ctx, fields[1])
		if err != nil {
			fmt.Printf("! %v\n", err)
			return false
		}
		v.open(ctx, t.ID)
	case "/group":
		if len(fields) < 3 {
			fmt.Println("! usage: /group <name> <id,id>")
			return false
		}
		t, err := v.session.CreateGroup(ctx, fields[1], strings.Split(fields[2], ","), nil)
		if err != nil {
			fmt.Printf("! %v\n", err)
			return false
		}
		v.open(ctx, t.ID)
	default:
		if strings.HasPrefix(line, "/") {
			fmt.Printf("! unknown command %s\n", fields[0])
			return false
		}
		v.session.SetDraft(line)
		if _, err := v.session.Send(ctx); err != nil {
			fmt.Printf("! %v\n", err)
		}
	}
	return false
}

// resolve accepts a 1-based position in the thread list or an id.
func (v *view) resolve(arg string) string {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg
	}
	threads := v.session.Threads()
	if n < 1 || n > len(threads) {
		return arg
	}
	return threads[n-1].ID
}

func (v *view) open(ctx context.Context, threadID string) {
	if err := v.session.Open(ctx, threadID); err != nil {
		fmt.Printf("! %v\n", err)
		return
	}
	t, _ := v.session.Thread(threadID)
	fmt.Printf("== %s ==\n", v.session.DisplayName(t))
	v.printMessages()
}

func (v *view) listThreads() {
	threads := v.session.Threads()
	if len(threads) == 0 {
		fmt.Println("  no conversations yet")
	}
	for i, t := range threads {
		fmt.Printf("%3d. %s\n", i+1, v.threadLine(t))
	}
	if n := v.session.TotalUnread(); n > 0 {
		fmt.Printf("  %d unread\n", n)
	}
}

func (v *view) threadLine(t thread.Thread) string {
	line := v.session.DisplayName(t)
	if t.UnreadCount > 0 {
		line += fmt.Sprintf(" [%d]", t.UnreadCount)
	}
	if t.LastMessagePreview != "" {
		line += "  " + t.LastMessagePreview
	}
	return line
}

// follow redraws on session changes until ctx is done.
func (v *view) follow(ctx context.Context, changes <-chan chatcore.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-changes:
			switch c {
			case chatcore.ChangeMessages:
				v.printMessages()
			case chatcore.ChangeTyping:
				v.printTyping()
			case chatcore.ChangeErrors:
				v.printErrors()
			case chatcore.ChangeConnection:
				if v.session.Connected() {
					fmt.Println("* connected")
				}
			}
		}
	}
}

func (v *view) printMessages() {
	v.mu.Lock()
	defer v.mu.Unlock()
	active := v.session.Active()
	if active != v.thread {
		v.thread = active
		v.printed = make(map[string]bool)
	}
	self := v.session.Self().ID
	for _, m := range v.session.Messages() {
		if v.printed[m.ID] {
			continue
		}
		v.printed[m.ID] = true
		mark := ""
		if m.SenderID == self && v.session.SeenByOthers(m.ID) {
			mark = " ✓✓"
		} else if m.SenderID == self {
			mark = " ✓"
		}
		fmt.Printf("[%s] %s: %s%s\n", m.Time.Local().Format("15:04"), m.SenderName, m.Text, mark)
	}
}

func (v *view) printTyping() {
	v.mu.Lock()
	defer v.mu.Unlock()
	var names []string
	for _, t := range v.session.Typers() {
		names = append(names, t.Name)
	}
	line := ""
	if len(names) > 0 {
		line = strings.Join(names, ", ") + " typing..."
	}
	if line != v.typing && line != "" {
		fmt.Println("  " + line)
	}
	v.typing = line
}

func (v *view) printErrors() {
	e := v.session.Errors()
	for _, msg := range []string{e.Threads, e.Messages, e.Compose} {
		if msg != "" {
			fmt.Printf("! %s\n", msg)
		}
	}
}
