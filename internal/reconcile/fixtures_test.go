package reconcile

import (
	"github.com/jask/splitsync/internal/ledger"
)

func split(id, date string, total ledger.Milliunits, main ledger.Subtransaction, reimbursement ledger.Milliunits) ledger.Transaction {
	return ledger.Transaction{
		ID:     id,
		Date:   ledger.MustParseDate(date),
		Amount: total,
		Subtransactions: []ledger.Subtransaction{
			main,
			{Amount: reimbursement, PayeeName: ledger.Str("Reimbursements"), CategoryName: ledger.Str("Reimbursements")},
		},
	}
}

func mainLeg(payee, category string, amount ledger.Milliunits) ledger.Subtransaction {
	return ledger.Subtransaction{Amount: amount, PayeeName: ledger.Str(payee), CategoryName: ledger.Str(category)}
}

func targetBudget() ledger.Budget {
	return ledger.Budget{
		ID:   "budget-b",
		Name: "Person 2",
		Accounts: []ledger.Account{
			{ID: "b-cash", Name: "Cash"},
			{ID: "b-bank", Name: "Bank"},
		},
		Payees: []ledger.Payee{
			{ID: "b-p-reimb", Name: "Reimbursements"},
			{ID: "b-p-coffee", Name: "The Coffee Shop Downtown"},
			{ID: "b-p-grocery", Name: "Grocery Store"},
			{ID: "b-p-gas", Name: "Gas Station"},
		},
		Categories: []ledger.Category{
			{ID: "b-c-food", Name: "Food & Dining"},
			{ID: "b-c-reimb", Name: "Reimbursements"},
		},
	}
}

func sourceBudget() ledger.Budget {
	return ledger.Budget{
		ID:         "budget-a",
		Name:       "Person 1",
		Accounts:   []ledger.Account{{ID: "a-bank", Name: "bank"}},
		Payees:     []ledger.Payee{{ID: "a-p-reimb", Name: "Reimbursements"}, {ID: "a-p-grocery", Name: "Grocery"}},
		Categories: []ledger.Category{{ID: "a-c-reimb", Name: "Reimbursements"}, {ID: "a-c-food", Name: "Food"}},
	}
}

func side(name string, b ledger.Budget, txs ...ledger.Transaction) Side {
	refs, err := b.References()
	if err != nil {
		panic(err)
	}
	return Side{Name: name, Budget: b, References: refs, Transactions: txs}
}

// toTarget replays a mirror payload as the transaction the remote ledger
// would return for it, with names resolved from budget.
func toTarget(id string, p ledger.MirrorPayload, b ledger.Budget) ledger.Transaction {
	payeeName := map[string]string{}
	for _, py := range b.Payees {
		payeeName[py.ID] = py.Name
	}
	tx := ledger.Transaction{ID: id, Date: p.Date, Amount: p.Amount, AccountID: p.AccountID, Memo: ledger.Str(p.Memo)}
	for _, s := range p.Subtransactions {
		sub := ledger.Subtransaction{Amount: s.Amount, PayeeID: s.PayeeID, CategoryID: s.CategoryID}
		if s.PayeeID != nil {
			sub.PayeeName = ledger.Str(payeeName[*s.PayeeID])
		}
		tx.Subtransactions = append(tx.Subtransactions, sub)
	}
	return tx
}
