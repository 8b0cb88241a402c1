
package bot

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/prasetyoadi/logam-tracker-bot/internal/alert"
	"github.com/prasetyoadi/logam-tracker-bot/internal/config"
	"github.com/prasetyoadi/logam-tracker-bot/internal/db"
	"github.com/prasetyoadi/logam-tracker-bot/internal/market"
	"github.com/prasetyoadi/logam-tracker-bot/internal/parser"
	"github.com/prasetyoadi/logam-tracker-bot/internal/scheduler"
	"github.com/prasetyoadi/logam-tracker-bot/internal/utils"
)

const proPeriod = 30 * 24 * time.Hour

type App struct {
	cfg config.Config
	db  *db.DB

	bot *tgbotapi.BotAPI

	market *market.Manager
	sched  *scheduler.Scheduler

	dataDir string
	dbPath  string
}

func New(cfg config.Config) (*App, error) {
	dataDir := cfg.DataDir
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dataDir, "bot.db")
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	b, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	b.Debug = cfg.Debug

	app := &App{
		cfg:     cfg,
		db:      database,
		bot:     b,
		market:  market.NewManager(cfg.TwelveDataAPIKey, cfg.GoldAPIKey),
		dataDir: dataDir,
		dbPath:  dbPath,
	}

	engine := alert.NewEngine(alert.Config{
		Slots:          cfg.UpdateSlots,
		UpdateCooldown: time.Duration(cfg.UpdateCooldownMin) * time.Minute,
		AlertCooldown:  time.Duration(cfg.AlertCooldownMin) * time.Minute,
		SpotAlertPct:   cfg.SpotAlertPct,
		BuybackAlertRp: cfg.BuybackAlertRp,
	}, database)
	app.sched = scheduler.New(database, app.market, engine, app, cfg.FetchIntervalMinutes, dataDir)
	return app, nil
}

func (a *App) Close() {
	if a.sched != nil {
		a.sched.Stop()
	}
	_ = a.db.Close()
}

func (a *App) Run() error {
	log.Printf("Bot authorized as @%s", a.bot.Self.UserName)

	a.sched.Start()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := a.bot.GetUpdatesChan(u)
	for upd := range updates {
		a.handleUpdate(upd)
	}
	return nil
}

// SendChannel delivers a broadcast to the configured public channel.
// Satisfies scheduler.Sender.
func (a *App) SendChannel(ctx context.Context, text string) error {
	if a.cfg.DryRun {
		log.Printf("[dry-run] channel broadcast:\n%s", text)
		return nil
	}
	msg := tgbotapi.NewMessage(a.cfg.ChannelID, text)
	msg.DisableWebPagePreview = true
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) handleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.From == nil {
		return
	}
	msg := *upd.Message

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	from := msg.From
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	user, err := a.db.GetOrCreateUser(ctx, from.ID, from.UserName, name)
	if err != nil {
		log.Printf("[bot] get user %d: %v", from.ID, err)
		return
	}

	if msg.IsCommand() {
		a.handleCommand(ctx, msg, user)
		return
	}
	if msg.Text != "" {
		a.handleText(ctx, msg, user)
	}
}

func (a *App) handleCommand(ctx context.Context, msg tgbotapi.Message, user db.User) {
	switch msg.Command() {
	case "start":
		a.cmdStart(ctx, msg, user)
	case "help":
		a.reply(msg.Chat.ID, "Cara catat:\n"+
			"- beli emas ANTAM 2gr 2pcs total 11.000.000\n"+
			"- jual emas 1gr total 1.200.000\n"+
			"- buyback emas 5gr total 28.000.000\n\n"+
			"Laporan:\n- /today\n- /stock\n- /summary\n- /export (PRO)\n\n"+
			"Manajemen:\n- /delete last\n- /delete <id>\n\n"+
			"Upgrade:\n- /upgrade")
	case "upgrade":
		a.cmdUpgrade(msg, user)
	case "today":
		a.cmdToday(ctx, msg, user)
	case "stock":
		a.cmdStock(ctx, msg, user)
	case "summary":
		a.cmdSummary(ctx, msg, user)
	case "list":
		a.cmdList(ctx, msg, user)
	case "export":
		a.cmdExport(ctx, msg, user)
	case "delete":
		a.cmdDelete(ctx, msg, user)
	}
}

func (a *App) cmdStart(ctx context.Context, msg tgbotapi.Message, user db.User) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if token, ok := strings.CutPrefix(arg, "paid_"); ok {
		now := time.Now()
		valid, err := a.db.ConsumeActivationToken(ctx, strings.TrimSpace(token), now)
		if err != nil {
			log.Printf("[bot] consume token: %v", err)
			return
		}
		if !valid {
			a.reply(msg.Chat.ID, "Token aktivasi tidak valid / sudah dipakai.")
			return
		}
		if err := a.db.ActivatePro(ctx, user.TelegramUserID, now.Add(proPeriod)); err != nil {
			log.Printf("[bot] activate pro %d: %v", user.TelegramUserID, err)
			return
		}
		a.reply(msg.Chat.ID, "✅ PRO aktif. Terima kasih! Coba: /export atau /stock")
		return
	}

	a.reply(msg.Chat.ID, "Halo! Saya bot pencatatan transaksi EMAS/PERAK.\n\n"+
		"Kirim transaksi seperti:\n"+
		"- jual emas ANTAM 2gr 2pcs total 11.000.000\n"+
		"- beli perak ANTAM 100gr total 1.250.000\n"+
		"- bb emas ANTAM 100gr total 1.250.000\n\n"+
		"Cek laporan: /today /stock /summary /export\n"+
		"Upgrade: /upgrade")
}

func (a *App) cmdUpgrade(msg tgbotapi.Message, user db.User) {
	link := fmt.Sprintf("%s?tg=%d", a.cfg.CheckoutURL, user.TelegramUserID)
	a.reply(msg.Chat.ID, "Upgrade ke PRO:\n"+
		"✅ Unlimited transaksi\n"+
		"✅ Export CSV\n"+
		"✅ Fitur baru\n\n"+
		"Klik untuk bayar: "+link+"\n"+
		"Setelah bayar, kamu akan diarahkan untuk aktivasi otomatis.")
}

func (a *App) cmdToday(ctx context.Context, msg tgbotapi.Message, user db.User) {
	totals, stock, err := a.db.TodaySummary(ctx, user.TelegramUserID, utils.StartOfDay(time.Now()))
	if err != nil {
		log.Printf("[bot] today %d: %v", user.TelegramUserID, err)
		return
	}
	buy, sell, buyback := totals["BUY"], totals["SELL"], totals["BUYBACK"]
	net := (sell - buy) - buyback

	a.reply(msg.Chat.ID, "📄 Rekap Hari Ini:\n"+
		"- BUY: "+fmtRp(buy)+"\n"+
		"- SELL: "+fmtRp(sell)+"\n"+
		"- BUYBACK: "+fmtRp(buyback)+"\n\n"+
		"📌 Net Cashflow: "+fmtRp(net)+"\n"+
		"📌 Stok hari ini:\n"+
		"- EMAS: "+utils.FormatGrams(stock["GOLD"])+" gr\n"+
		"- PERAK: "+utils.FormatGrams(stock["SILVER"])+" gr")
}

func (a *App) cmdStock(ctx context.Context, msg tgbotapi.Message, user db.User) {
	stock, err := a.db.StockAllTime(ctx, user.TelegramUserID)
	if err != nil {
		log.Printf("[bot] stock %d: %v", user.TelegramUserID, err)
		return
	}
	a.reply(msg.Chat.ID, "📌 Stok Saat Ini:\n"+
		"- EMAS: "+stock["GOLD"].StringFixed(1)+" gr\n"+
		"- PERAK: "+stock["SILVER"].StringFixed(1)+" gr")
}

func (a *App) cmdSummary(ctx context.Context, msg tgbotapi.Message, user db.User) {
	s, err := a.db.PortfolioSummary(ctx, user.TelegramUserID)
	if err != nil {
		log.Printf("[bot] summary %d: %v", user.TelegramUserID, err)
		return
	}
	if !s.Exists {
		a.reply(msg.Chat.ID, "Belum ada portfolio. Kirim transaksi pertama dulu ya.")
		return
	}
	avgBuy := "-"
	if s.AvgBuy != nil {
		avgBuy = fmtRp(s.AvgBuy.IntPart())
	}
	a.reply(msg.Chat.ID, strings.Join([]string{
		"📊 Ringkasan (simple):",
		"- Total masuk (beli + buyback): " + utils.FormatGrams(s.TotalBuyGrams) + "gr",
		"- Total jual: " + utils.FormatGrams(s.TotalSellGrams) + "gr",
		"- Holdings: " + utils.FormatGrams(s.Holdings) + "gr",
		"- Avg beli (BUY saja): " + avgBuy + "/gr",
		"",
		"Catatan: ringkasan ini versi MVP (belum FIFO/realized P&L).",
	}, "\n"))
}

func (a *App) cmdList(ctx context.Context, msg tgbotapi.Message, user db.User) {
	asset := ""
	limit := 5
	for _, arg := range strings.Fields(msg.CommandArguments()) {
		if m := parseMetalArg(arg); m != "" {
			asset = m
			continue
		}
		if n, err := strconv.Atoi(arg); err == nil {
			limit = max(1, min(n, 50))
		}
	}

	txs, err := a.db.ListTransactions(ctx, user.TelegramUserID, asset, limit)
	if err != nil {
		log.Printf("[bot] list %d: %v", user.TelegramUserID, err)
		return
	}
	scope := "SEMUA"
	switch asset {
	case "GOLD":
		scope = "EMAS"
	case "SILVER":
		scope = "PERAK"
	}
	if len(txs) == 0 {
		a.reply(msg.Chat.ID, fmt.Sprintf("Belum ada transaksi (%s).", scope))
		return
	}

	lines := []string{fmt.Sprintf("📄 %d transaksi terakhir (%s):", len(txs), scope)}
	totalPcs := 0
	var totalAmount int64
	totalGrams := decimal.Zero

	for _, tx := range txs {
		metal := "EMAS"
		if tx.Asset == "SILVER" {
			metal = "PERAK"
		}
		pcs := tx.Pcs
		if pcs <= 0 {
			pcs = 1
		}
		totalPcs += pcs
		totalAmount += tx.TotalAmount

		weight := decimal.Zero
		if tx.WeightGram != nil {
			weight = *tx.WeightGram
		}
		if tw := tx.TotalWeight(); tw != nil {
			totalGrams = totalGrams.Add(*tw)
		}

		breakdown := fmt.Sprintf("%dpcs", pcs)
		if tx.WeightGram != nil {
			breakdown += " x " + utils.FormatGrams(*tx.WeightGram) + "gr"
		}
		perUnit := tx.TotalAmount / int64(pcs)

		lines = append(lines, fmt.Sprintf("- %s | %s %s %sgr | %s | @ %s/gr | total %s | %s",
			tx.Side, metal, tx.Product, utils.FormatGrams(weight),
			breakdown, fmtRp(perUnit), fmtRp(tx.TotalAmount), tx.TxDate))
	}

	lines = append(lines, "",
		"📌 Total (dari list ini):",
		fmt.Sprintf("- Total pcs: %dpcs", totalPcs),
		"- Total gram: "+utils.FormatGrams(totalGrams)+"gr",
		"- Total nilai: "+fmtRp(totalAmount))
	a.reply(msg.Chat.ID, strings.Join(lines, "\n"))
}

func (a *App) cmdExport(ctx context.Context, msg tgbotapi.Message, user db.User) {
	sub, err := a.db.GetSubscription(ctx, user.TelegramUserID)
	if err != nil {
		log.Printf("[bot] subscription %d: %v", user.TelegramUserID, err)
		return
	}
	if !sub.IsProActive(time.Now()) {
		a.reply(msg.Chat.ID, "Fitur /export hanya untuk PRO. Ketik /upgrade")
		return
	}

	now := utils.NowJakarta()
	txs, err := a.db.TransactionsSince(ctx, user.TelegramUserID, utils.StartOfMonth(now))
	if err != nil {
		log.Printf("[bot] export %d: %v", user.TelegramUserID, err)
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "created_at", "side", "asset", "product", "weight_gram", "pcs", "total_amount", "note"})
	for _, t := range txs {
		weight := ""
		if t.WeightGram != nil {
			weight = t.WeightGram.String()
		}
		_ = w.Write([]string{
			strconv.FormatInt(t.ID, 10),
			t.CreatedAt.In(utils.JakartaLoc()).Format(time.RFC3339),
			t.Side,
			t.Asset,
			t.Product,
			weight,
			strconv.Itoa(t.Pcs),
			strconv.FormatInt(t.TotalAmount, 10),
			t.Note,
		})
	}
	w.Flush()

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  "transactions_" + now.Format("2006_01") + ".csv",
		Bytes: buf.Bytes(),
	})
	doc.Caption = "✅ Export CSV bulan ini"
	if _, err := a.bot.Send(doc); err != nil {
		log.Printf("[bot] send export %d: %v", user.TelegramUserID, err)
	}
}

func (a *App) cmdDelete(ctx context.Context, msg tgbotapi.Message, user db.User) {
	target := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	switch {
	case target == "last":
		id, ok, err := a.db.DeleteLastTransaction(ctx, user.TelegramUserID)
		if err != nil {
			log.Printf("[bot] delete last %d: %v", user.TelegramUserID, err)
			return
		}
		if !ok {
			a.reply(msg.Chat.ID, "Belum ada transaksi.")
			return
		}
		a.reply(msg.Chat.ID, fmt.Sprintf("🗑️ Dihapus transaksi terakhir (#%d)", id))
	case isDigits(target):
		id, _ := strconv.ParseInt(target, 10, 64)
		ok, err := a.db.DeleteTransactionByID(ctx, user.TelegramUserID, id)
		if err != nil {
			log.Printf("[bot] delete %d/%d: %v", user.TelegramUserID, id, err)
			return
		}
		if !ok {
			a.reply(msg.Chat.ID, "ID tidak ditemukan.")
			return
		}
		a.reply(msg.Chat.ID, fmt.Sprintf("🗑️ Dihapus transaksi #%d", id))
	default:
		a.reply(msg.Chat.ID, "Pakai: /delete last atau /delete <id>")
	}
}

func (a *App) handleText(ctx context.Context, msg tgbotapi.Message, user db.User) {
	parsed, ok := parser.Parse(msg.Text)
	if !ok {
		// ignore non-transaction chat
		return
	}

	canAdd, err := a.canAddTx(ctx, user)
	if err != nil {
		log.Printf("[bot] quota %d: %v", user.TelegramUserID, err)
		return
	}
	if !canAdd {
		a.reply(msg.Chat.ID, "Kuota FREE kamu sudah habis.\n"+
			"Upgrade untuk lanjut catat + export.\n"+
			"Ketik /upgrade")
		return
	}

	asset := string(parsed.Asset)
	if asset == "" {
		asset = "GOLD"
	}
	now := utils.NowJakarta()
	tx := db.Transaction{
		TelegramUserID: user.TelegramUserID,
		Asset:          asset,
		Product:        parsed.Product,
		Side:           string(parsed.Side),
		WeightGram:     parsed.WeightGram,
		Pcs:            parsed.Pcs,
		TotalAmount:    parsed.Total,
		TxDate:         now.Format("2006-01-02"),
		Note:           parsed.Note,
		ChatID:         nullInt(msg.Chat.ID),
		MessageID:      nullInt(int64(msg.MessageID)),
	}
	id, err := a.db.InsertTransaction(ctx, tx)
	if err != nil {
		log.Printf("[bot] insert tx %d: %v", user.TelegramUserID, err)
		return
	}

	weightLine := ""
	if tx.WeightGram != nil {
		tw := tx.WeightGram.Mul(decimal.NewFromInt(int64(tx.Pcs)))
		weightLine = fmt.Sprintf("\nBerat: %s gr X %d pcs (%s gr)",
			utils.FormatGrams(*tx.WeightGram), tx.Pcs, utils.FormatGrams(tw))
	}
	product := ""
	if tx.Product != "" {
		product = tx.Product + " "
	}
	a.reply(msg.Chat.ID, fmt.Sprintf("✅ Tercatat: %s %s%s%s\nTotal: %s\nID: #%d",
		tx.Side, product, tx.Asset, weightLine, fmtRp(tx.TotalAmount), id))
}

// canAddTx enforces the monthly FREE quota; PRO is unlimited.
func (a *App) canAddTx(ctx context.Context, user db.User) (bool, error) {
	sub, err := a.db.GetSubscription(ctx, user.TelegramUserID)
	if err != nil {
		return false, err
	}
	if sub.IsProActive(time.Now()) {
		return true, nil
	}
	n, err := a.db.CountTransactionsSince(ctx, user.TelegramUserID, utils.StartOfMonth(utils.NowJakarta()))
	if err != nil {
		return false, err
	}
	return n < a.cfg.FreeTxLimit, nil
}

func (a *App) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := a.bot.Send(msg); err != nil {
		log.Printf("[bot] send to %d: %v", chatID, err)
	}
}

func fmtRp(n int64) string {
	return "Rp " + utils.FormatInt(n)
}

func parseMetalArg(arg string) string {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "emas", "gold", "xau":
		return "GOLD"
	case "perak", "silver", "xag":
		return "SILVER"
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}
