package domain

var Tables = []interface{}{
	&Instance{},
	&AuthState{},
	&Message{},
}
