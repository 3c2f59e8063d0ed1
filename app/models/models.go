package models

type Model struct {
	Model interface{}
}

func RegisterModels() []Model {
	return []Model{
		{Model: &Currency{}},
		{Model: &Provider{}},
		{Model: &User{}},
		{Model: &Order{}},
		{Model: &Transaction{}},
		{Model: &OrderMessage{}},
		{Model: &BankStatementLine{}},
	}
}
