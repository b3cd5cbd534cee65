package dialogue

import (
	"fmt"
	"strings"

	"github.com/kamir/goalbot/internal/domain"
)

// Commands understood by the engine.
const (
	CmdGoals  = "/goals"
	CmdCreate = "/create"
	CmdCancel = "/cancel"
	CmdStart  = "/start"
	CmdHelp   = "/help"
)

// User-visible replies.
const (
	MsgNoGoals         = "no goals"
	MsgNoCategories    = "no categories yet, create one on the website first"
	MsgChooseCategory  = "choose a category (send its number):"
	MsgInvalidCategory = "invalid category, choose again:"
	MsgAskTitle        = "enter the goal title"
	MsgAskTitleAgain   = "send the goal title as plain text, or /cancel"
	MsgCancelled       = "operation cancelled"
	MsgUnknownCommand  = "unknown command"
	MsgHelp            = "available commands:\n/goals - list your goals\n/create - create a goal\n/cancel - cancel the current operation"
	MsgFailure         = "something went wrong, please try again later"
)

func goalsText(goals []domain.Goal) string {
	if len(goals) == 0 {
		return MsgNoGoals
	}
	lines := make([]string, 0, len(goals))
	for _, g := range goals {
		lines = append(lines, fmt.Sprintf("%d - %s", g.ID, g.Title))
	}
	return strings.Join(lines, "\n")
}

func categoriesText(header string, cats []domain.Category) string {
	var b strings.Builder
	b.WriteString(header)
	for _, c := range cats {
		fmt.Fprintf(&b, "\n%d - %s", c.ID, c.Title)
	}
	return b.String()
}

func verificationText(code string) string {
	return "your verification code:\n" + code + "\nenter it on the website to link this chat to your account"
}

func goalCreatedText(title string) string {
	return fmt.Sprintf("goal %q created", title)
}

func unknownCommandText() string {
	return MsgUnknownCommand + "\n" + MsgHelp
}
