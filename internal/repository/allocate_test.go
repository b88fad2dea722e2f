package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanAllocation(t *testing.T) {
	tests := []struct {
		name      string
		rows      []allocation
		amount    int64
		wantTakes []allocation
		wantTotal int64
	}{
		{
			name:      "single row covers exactly",
			rows:      []allocation{{id: 1, amount: 3000}},
			amount:    3000,
			wantTakes: []allocation{{id: 1, amount: 3000}},
			wantTotal: 3000,
		},
		{
			name:      "single row partial draw",
			rows:      []allocation{{id: 1, amount: 3000}},
			amount:    1200,
			wantTakes: []allocation{{id: 1, amount: 1200}},
			wantTotal: 3000,
		},
		{
			// £50 expiring soon plus £30 expiring later; a £60 draw
			// drains the older grant and dips £10 into the newer one,
			// leaving £0 and £20 respectively.
			name:      "oldest drained before newer grant is touched",
			rows:      []allocation{{id: 1, amount: 5000}, {id: 2, amount: 3000}},
			amount:    6000,
			wantTakes: []allocation{{id: 1, amount: 5000}, {id: 2, amount: 1000}},
			wantTotal: 8000,
		},
		{
			name:      "later rows untouched once covered",
			rows:      []allocation{{id: 1, amount: 2000}, {id: 2, amount: 2000}, {id: 3, amount: 2000}},
			amount:    2000,
			wantTakes: []allocation{{id: 1, amount: 2000}},
			wantTotal: 6000,
		},
		{
			name:      "shortfall takes nothing",
			rows:      []allocation{{id: 1, amount: 5000}, {id: 2, amount: 3000}},
			amount:    9000,
			wantTakes: nil,
			wantTotal: 8000,
		},
		{
			name:      "no rows at all",
			rows:      nil,
			amount:    100,
			wantTakes: nil,
			wantTotal: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			takes, total := planAllocation(tc.rows, tc.amount)
			assert.Equal(t, tc.wantTakes, takes)
			assert.Equal(t, tc.wantTotal, total)
		})
	}
}

func TestPlanAllocationCoversAmountExactly(t *testing.T) {
	rows := []allocation{{id: 1, amount: 700}, {id: 2, amount: 900}, {id: 3, amount: 400}}
	takes, _ := planAllocation(rows, 1500)
	var sum int64
	for _, tk := range takes {
		sum += tk.amount
	}
	assert.Equal(t, int64(1500), sum)
}
