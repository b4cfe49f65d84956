package tui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/lazytodo/internal/intent"
	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/notify"
	"github.com/Joseda-hg/lazytodo/internal/tasks"
	"github.com/Joseda-hg/lazytodo/internal/voice"
)

const (
	viewHeader = "header"
	viewFooter = "footer"
	viewList   = "list"
	viewForm   = "form"
	viewVoice  = "voice"
	viewHelp   = "help"
)

// Deps are the collaborators the terminal UI presents and dispatches into.
// Prompt, when set, is the recognizer behind Voice and gets bound to the
// voice prompt overlay.
type Deps struct {
	Store    *tasks.Store
	Voice    *voice.Session
	Prompt   *voice.Typed
	Notifier notify.Provider
	Now      func() time.Time
}

type UI struct {
	store      *tasks.Store
	voice      *voice.Session
	notifier   notify.Provider
	dispatcher *intent.Dispatcher
	gui        *gocui.Gui
	now        func() time.Time

	visible  []model.Task
	filter   model.Filter
	selected int

	form        *formState
	formEditor  *formEditor
	voiceActive bool
	voiceLocale string
	helpActive  bool
	status      string
}

type formState struct {
	taskID string
	fields []formField
	index  int
}

type formEditor struct {
	ui *UI
}

func NewUI(deps Deps) *UI {
	u := &UI{
		store:    deps.Store,
		voice:    deps.Voice,
		notifier: deps.Notifier,
		now:      deps.Now,
		filter:   model.FilterAll,
	}
	if u.notifier == nil {
		u.notifier = notify.Unavailable{}
	}
	if u.now == nil {
		u.now = time.Now
	}
	u.dispatcher = &intent.Dispatcher{Store: u.store, Notifier: u.notifier}
	if u.voice != nil {
		u.dispatcher.Voice = u.voice
	}
	if deps.Prompt != nil && u.voice != nil {
		deps.Prompt.Open = u.openVoicePrompt
		deps.Prompt.Close = u.closeVoicePrompt
	}
	u.formEditor = &formEditor{ui: u}
	u.loadTasks()
	return u
}

// Run blocks in the gocui main loop until the user quits.
func Run(deps Deps) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := NewUI(deps)
	ui.gui = gui
	gui.Mouse = true

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}

	unsubscribe := ui.store.Subscribe(func(tasks.Change) {
		gui.Update(func(*gocui.Gui) error {
			ui.loadTasks()
			return nil
		})
	})
	defer unsubscribe()
	if ui.voice != nil {
		ui.voice.Subscribe(func(bool) {
			gui.Update(func(*gocui.Gui) error { return nil })
		})
	}

	if err := gui.MainLoop(); err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	if err := gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'q', gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'a', gocui.ModNone, u.addTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'e', gocui.ModNone, u.editTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'd', gocui.ModNone, u.deleteTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'x', gocui.ModNone, u.toggleTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, gocui.KeySpace, gocui.ModNone, u.toggleTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'v', gocui.ModNone, u.startVoice); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'n', gocui.ModNone, u.requestNotifications); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, '?', gocui.ModNone, u.toggleHelp); err != nil {
		return err
	}
	for i := range filterKeys {
		filter := filterKeys[i]
		key := rune('0' + i)
		if err := gui.SetKeybinding(viewList, key, gocui.ModNone, func(g *gocui.Gui, v *gocui.View) error {
			return u.setFilter(g, filter)
		}); err != nil {
			return err
		}
	}
	if err := gui.SetKeybinding(viewList, gocui.KeyArrowDown, gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'j', gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, gocui.KeyArrowUp, gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'k', gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitFormNow); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyBacktab, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewVoice, gocui.KeyEnter, gocui.ModNone, u.submitVoice); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewVoice, gocui.KeyEsc, gocui.ModNone, u.stopVoice); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, gocui.KeyEsc, gocui.ModNone, u.toggleHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, '?', gocui.ModNone, u.toggleHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, 'q', gocui.ModNone, u.toggleHelp); err != nil {
		return err
	}
	if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: viewList, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
		return u.onListClick(gui, opts)
	}}); err != nil {
		return err
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	u.renderHeader(headerView)

	footerY1 := max(maxY-1, 3)
	footerY0 := max(footerY1-3, 2)
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	u.renderFooter(footerView)

	listY1 := footerY0 - 1
	if listY1 <= 2 {
		return nil
	}
	listView, err := gui.SetView(viewList, 0, 2, maxX-1, listY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		listView.TitleColor = gocui.ColorCyan
	}
	listView.Title = fmt.Sprintf("Tasks (%s)", u.filter)
	applyViewStyle(listView, !u.inputActive())
	u.renderTaskList(listView)

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.voiceActive {
		if err := u.showVoicePrompt(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewVoice)
	}

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	if !u.inputActive() {
		_, _ = gui.SetCurrentView(viewList)
	}
	gui.Cursor = u.form != nil || u.voiceActive
	return nil
}

// loadTasks refreshes the visible list from the store and keeps the
// selection in range.
func (u *UI) loadTasks() {
	u.visible = u.store.FilteredTasks()
	u.filter = u.store.Filter()
	if u.selected >= len(u.visible) {
		u.selected = len(u.visible) - 1
	}
	if u.selected < 0 {
		u.selected = 0
	}
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	all := u.store.Tasks()
	fmt.Fprintf(view, "Filter: %s | Tasks: %d (%d done) | Voice: %s | Notifications: %s",
		u.filter, len(all), countCompleted(all), voiceLabel(u.voice), notificationLabel(u.notifier))
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)
	view.SetCursor(0, 0)

	fmt.Fprintln(view, "a add | e edit | d delete | x/space toggle | j/k move | v voice | n notifications")
	fmt.Fprintln(view, "0 all | 1 personal | 2 work | 3 shopping | 4 other | ? help | q quit")
	if u.status != "" {
		fmt.Fprint(view, u.status)
	}
}

func (u *UI) renderTaskList(view *gocui.View) {
	view.Clear()
	if len(u.visible) == 0 {
		fmt.Fprintf(view, "  %s\n  Add a new task to get started\n", model.EmptyStateText(u.filter))
		return
	}
	now := u.now()
	for i, task := range u.visible {
		prefix := " "
		if i == u.selected {
			prefix = ">"
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatTaskSummary(task, now))
	}
	view.SetCursor(0, u.selected)
}

func (u *UI) onListClick(gui *gocui.Gui, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() {
		return nil
	}
	view, err := gui.View(viewList)
	if err != nil {
		return nil
	}
	_, y0, _, _ := view.Dimensions()
	_, oy := view.Origin()
	row := max(opts.Y-y0-1+oy, 0)
	u.selected = min(row, len(u.visible)-1)
	return nil
}

func (u *UI) selectedTask() *model.Task {
	if u.selected >= 0 && u.selected < len(u.visible) {
		return &u.visible[u.selected]
	}
	return nil
}

func (u *UI) moveDown(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.selected < len(u.visible)-1 {
		u.selected++
	}
	return nil
}

func (u *UI) moveUp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.selected > 0 {
		u.selected--
	}
	return nil
}

func (u *UI) dispatch(in intent.Intent) {
	if _, err := u.dispatcher.Dispatch(in); err != nil {
		slog.Error("dispatch intent", "intent", fmt.Sprintf("%T", in), "error", err)
		u.status = err.Error()
		return
	}
	u.loadTasks()
}

func (u *UI) setFilter(_ *gocui.Gui, filter model.Filter) error {
	if u.inputActive() {
		return nil
	}
	u.selected = 0
	u.status = ""
	u.dispatch(intent.SetFilter{Filter: filter})
	return nil
}

func (u *UI) addTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.form = &formState{fields: buildFormFields(nil)}
	if u.filter != model.FilterAll {
		u.form.fields[fieldCategory].Value = string(u.filter)
	}
	return nil
}

func (u *UI) editTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	u.form = &formState{taskID: selected.ID, fields: buildFormFields(selected)}
	return nil
}

func (u *UI) deleteTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	u.status = ""
	u.dispatch(intent.Delete{ID: selected.ID})
	return nil
}

func (u *UI) toggleTask(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	u.status = ""
	u.dispatch(intent.Toggle{ID: selected.ID})
	return nil
}

func (u *UI) requestNotifications(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if !u.notifier.Available() {
		u.status = "Notifications need the web UI (--web)"
		return nil
	}
	u.dispatch(intent.RequestNotifications{})
	return nil
}

func (u *UI) showForm(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(8, max(5, maxY/2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewForm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
	}
	view.Title = "New Task"
	if u.form.taskID != "" {
		view.Title = "Edit Task"
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) submitFormNow(_ *gocui.Gui, _ *gocui.View) error {
	if u.form == nil {
		return nil
	}

	input, err := parseFormFields(u.form.fields)
	if err != nil {
		u.status = err.Error()
		return nil
	}

	if u.form.taskID == "" {
		res, err := u.dispatcher.Dispatch(intent.Add{Text: input.Text, Category: input.Category, Deadline: input.Deadline})
		if err != nil {
			u.status = err.Error()
			return nil
		}
		if !res.Created {
			u.status = "Task text is required"
			return nil
		}
	} else {
		u.dispatch(intent.Edit{ID: u.form.taskID, Text: input.Text})
	}

	u.form = nil
	u.status = ""
	u.loadTasks()
	return nil
}

func (u *UI) cancelForm(_ *gocui.Gui, _ *gocui.View) error {
	u.form = nil
	return nil
}

func (u *UI) nextFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index < len(u.form.fields)-1 {
		u.form.index++
	}
	u.renderForm(view)
	return nil
}

func (u *UI) prevFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index > 0 {
		u.form.index--
	}
	u.renderForm(view)
	return nil
}

func (u *UI) renderForm(view *gocui.View) {
	if u.form == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, field.Value)
	}
	current := u.form.fields[u.form.index]
	cursorX := len([]rune(current.Label)) + len([]rune(current.Value)) + 4
	view.SetCursor(cursorX, u.form.index)
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil || view == nil {
		return false
	}
	field := &ui.form.fields[ui.form.index]

	if isCategoryField(field.Label) {
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			field.Value = nextCategory(field.Value)
		case gocui.KeyArrowLeft:
			field.Value = prevCategory(field.Value)
		}
		ui.renderForm(view)
		return true
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}

	ui.renderForm(view)
	return true
}

func (u *UI) startVoice(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.voice == nil || !u.voice.Available() {
		u.status = "Voice input is not available"
		return nil
	}
	u.status = ""
	u.dispatch(intent.StartVoice{})
	return nil
}

// openVoicePrompt and closeVoicePrompt back the typed recognizer. Opening the
// prompt is the recognizer starting; closing it is the recognizer ending.
func (u *UI) openVoicePrompt(locale string) {
	u.voiceActive = true
	u.voiceLocale = locale
	u.voice.HandleStart()
}

func (u *UI) closeVoicePrompt() {
	u.voiceActive = false
	u.voice.HandleEnd()
}

func (u *UI) showVoicePrompt(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(40, maxX/2)
	height := 2
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewVoice, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Clear()
	}
	view.Title = fmt.Sprintf("Listening (%s): say \"add ...\"", u.voiceLocale)
	view.Editable = true
	view.Editor = gocui.DefaultEditor
	_, _ = gui.SetCurrentView(viewVoice)
	return nil
}

func (u *UI) submitVoice(gui *gocui.Gui, view *gocui.View) error {
	transcript := ""
	if view != nil {
		transcript = view.Buffer()
	}
	return u.submitTranscript(gui, transcript)
}

// submitTranscript hands a typed utterance to the voice session as its
// recognition result and ends the session.
func (u *UI) submitTranscript(_ *gocui.Gui, transcript string) error {
	if !u.voiceActive {
		return nil
	}
	transcript = strings.TrimSpace(transcript)
	if _, ok := voice.ParseTranscript(transcript); ok {
		u.status = voice.ConfirmationMessage
	} else {
		u.status = "Nothing heard"
	}
	u.voice.HandleResult(transcript)
	u.dispatch(intent.StopVoice{})
	return nil
}

func (u *UI) stopVoice(_ *gocui.Gui, _ *gocui.View) error {
	u.dispatch(intent.StopVoice{})
	return nil
}

func (u *UI) toggleHelp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(50, maxX/2)
	height := 14
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) inputActive() bool {
	return u.form != nil || u.voiceActive || u.helpActive
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Tasks:",
		"  a add task | e edit text | d delete | x/space toggle done",
		"  j/k or arrows move selection | mouse click selects",
		"",
		"Filters:",
		"  0 all | 1 personal | 2 work | 3 shopping | 4 other",
		"",
		"Form:",
		"  tab/arrows next field | space/left/right cycle category",
		"  enter save | esc cancel",
		"",
		"Voice:",
		"  v open prompt, type \"add buy milk\", enter to submit | esc cancel",
		"",
		"Other:",
		"  n request notifications (web) | ? help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool) {
	view.Frame = true
	view.Highlight = focused
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	if focused {
		view.FrameColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
	}
}
