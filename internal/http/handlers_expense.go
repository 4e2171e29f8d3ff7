package http

import (
	"errors"
	"net/http"
	"time"

	"spendbook/internal/core"
	applog "spendbook/internal/log"
)

type monthPage struct {
	Token     core.MonthToken
	MonthName string
	Expenses  []core.Expense
	Total     string
	PrevPath  string
	NextPath  string
	HasPrev   bool
	IsCurrent bool
	Flash     string
}

type expensePage struct {
	Title       string
	Action      string
	Description string
	Amount      string
	Date        string
	Errors      []string
	CancelPath  string
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		http.Redirect(w, r, core.CurrentMonthToken().Path(), http.StatusSeeOther)
		return
	}
	token, ok := monthPathToken(r.URL.Path)
	if !ok || !token.IsValid() {
		http.NotFound(w, r)
		return
	}
	s.handleMonth(w, r, token)
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request, token core.MonthToken) {
	expenses, ok := s.monthCache.Get(token.Path())
	if !ok {
		var err error
		expenses, err = s.ledger.MonthExpenses(r.Context(), token)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Month load failed",
				applog.FieldError, err, applog.FieldYear, token.Year, applog.FieldMonth, token.Month)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		s.monthCache.Set(token.Path(), expenses)
	}

	s.render(w, r, "month.html", monthPage{
		Token:     token,
		MonthName: token.Name(),
		Expenses:  expenses,
		Total:     core.FormatAmount(core.SumAmounts(expenses)),
		PrevPath:  token.PrevPath(),
		NextPath:  token.NextPath(),
		HasPrev:   token.Prev().IsValid(),
		IsCurrent: token.IsCurrentMonth(),
		Flash:     s.sessions.popFlash(r),
	})
}

func (s *Server) handleNewExpenseForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "expense_form.html", expensePage{
		Title:      "New expense",
		Action:     "/expenses",
		Date:       time.Now().Format("2006-01-02"),
		CancelPath: core.CurrentMonthToken().Path(),
	})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	description := r.PostFormValue("description")
	amount := r.PostFormValue("amount")
	date := r.PostFormValue("date")

	exp, err := s.ledger.CreateExpense(r.Context(), description, amount, date)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.render(w, r, "expense_form.html", expensePage{
				Title:       "New expense",
				Action:      "/expenses",
				Description: description,
				Amount:      amount,
				Date:        date,
				Errors:      verr.Messages,
				CancelPath:  core.CurrentMonthToken().Path(),
			})
			return
		}
		s.logger.ErrorContext(r.Context(), "Expense create failed", applog.FieldError, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	s.monthCache.Delete(core.TokenForDate(exp.Date).Path())
	s.sessions.setFlash(r, "Expense added.")
	http.Redirect(w, r, core.TokenForDate(exp.Date).Path(), http.StatusSeeOther)
}

func (s *Server) handleEditExpenseForm(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseExpenseID(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	exp, err := s.ledger.Expense(r.Context(), id)
	if err != nil {
		s.respondExpenseError(w, r, err, "Expense load failed")
		return
	}

	s.render(w, r, "expense_form.html", expensePage{
		Title:       "Edit expense",
		Action:      "/expenses/" + r.PathValue("id"),
		Description: exp.Description,
		Amount:      core.FormatAmount(exp.Amount),
		Date:        exp.Date.String(),
		CancelPath:  core.TokenForDate(exp.Date).Path(),
	})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseExpenseID(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	description := r.PostFormValue("description")
	amount := r.PostFormValue("amount")
	date := r.PostFormValue("date")

	// The expense may move to another month; remember the old one so
	// both cached listings get invalidated. It also stays the cancel
	// target while the form is being corrected.
	var oldPath string
	cancelPath := core.CurrentMonthToken().Path()
	if old, err := s.ledger.Expense(r.Context(), id); err == nil {
		oldPath = core.TokenForDate(old.Date).Path()
		cancelPath = oldPath
	}

	exp, err := s.ledger.UpdateExpense(r.Context(), id, description, amount, date)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.render(w, r, "expense_form.html", expensePage{
				Title:       "Edit expense",
				Action:      "/expenses/" + r.PathValue("id"),
				Description: description,
				Amount:      amount,
				Date:        date,
				Errors:      verr.Messages,
				CancelPath:  cancelPath,
			})
			return
		}
		s.respondExpenseError(w, r, err, "Expense update failed")
		return
	}

	if oldPath != "" {
		s.monthCache.Delete(oldPath)
	}
	s.monthCache.Delete(core.TokenForDate(exp.Date).Path())
	s.sessions.setFlash(r, "Expense updated.")
	http.Redirect(w, r, core.TokenForDate(exp.Date).Path(), http.StatusSeeOther)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseExpenseID(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	token, err := s.ledger.DeleteExpense(r.Context(), id)
	if err != nil {
		s.respondExpenseError(w, r, err, "Expense delete failed")
		return
	}

	s.monthCache.Delete(token.Path())
	s.sessions.setFlash(r, "Expense deleted.")
	http.Redirect(w, r, token.Path(), http.StatusSeeOther)
}

func (s *Server) respondExpenseError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, core.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	s.logger.ErrorContext(r.Context(), msg, applog.FieldError, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
