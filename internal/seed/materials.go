package seed

import (
	"context"
	"fmt"
	"math/rand"

	"koon/internal/exchange"
	"koon/pkg/types"

	"github.com/k0kubun/pp/v3"
)

var fakeMaterialNames = []string{
	"Calculus I lecture notes",
	"Linear Algebra textbook",
	"Physics 101 lab manual",
	"Organic Chemistry flashcards",
	"Data Structures slides (printed)",
	"Arabic Literature anthology",
	"Engineering Drawing kit",
	"Statistics past exams bundle",
	"Microeconomics summary sheets",
	"Scientific calculator",
}

var fakeDonors = []struct {
	Name      string
	Phone     string
	StudentID string
}{
	{"Sara Haddad", "0791234567", "20201234"},
	{"Omar Khalil", "0785551212", "20195678"},
	{"Lina Nassar", "0779876543", "20213456"},
	{"Yousef Amin", "0796543210", ""},
	{"Rania Odeh", "0781112233", "20187654"},
}

type weightedTarget struct {
	Status types.ItemStatus
	Weight int
}

var weightedTargets = []weightedTarget{
	{Status: types.ItemStatusPending, Weight: 35},
	{Status: types.ItemStatusApproved, Weight: 30},
	{Status: types.ItemStatusReserved, Weight: 25},
	{Status: types.ItemStatusCompleted, Weight: 10},
}

// SeedFakeMaterials creates count donation records and walks a weighted
// share of their items through the lifecycle so every status shows up in
// the console.
func SeedFakeMaterials(ctx context.Context, svc *exchange.Service, count int) error {
	if count <= 0 {
		fmt.Println("Skipping fake materials seed because count <= 0")
		return nil
	}

	for i := 0; i < count; i++ {
		donor := fakeDonors[rand.Intn(len(fakeDonors))]

		itemCount := 1 + rand.Intn(3)
		items := make([]exchange.NewItem, 0, itemCount)
		for j := 0; j < itemCount; j++ {
			items = append(items, exchange.NewItem{
				Name: fakeMaterialNames[rand.Intn(len(fakeMaterialNames))],
			})
		}

		rec, err := svc.CreateRecord(ctx, exchange.CreateRecordInput{
			DonorName:      donor.Name,
			DonorPhone:     donor.Phone,
			DonorStudentID: donor.StudentID,
			Items:          items,
		})
		if err != nil {
			return fmt.Errorf("failed to seed donation record: %w", err)
		}

		for _, item := range rec.Items {
			if err := advanceTo(ctx, svc, rec.ID, item.ID, pickTarget()); err != nil {
				return err
			}
		}

		pp.Println(rec.ID, donor.Name, itemCount)
	}

	return nil
}

func pickTarget() types.ItemStatus {
	total := 0
	for _, t := range weightedTargets {
		total += t.Weight
	}

	n := rand.Intn(total)
	for _, t := range weightedTargets {
		n -= t.Weight
		if n < 0 {
			return t.Status
		}
	}

	return types.ItemStatusPending
}

func advanceTo(ctx context.Context, svc *exchange.Service, recordID, itemID string, target types.ItemStatus) error {
	if target == types.ItemStatusPending {
		return nil
	}

	if _, err := svc.Approve(ctx, recordID, itemID); err != nil {
		return fmt.Errorf("failed to approve seeded item: %w", err)
	}
	if target == types.ItemStatusApproved {
		return nil
	}

	taker := fakeDonors[rand.Intn(len(fakeDonors))]
	_, err := svc.ManualReserve(ctx, recordID, itemID, types.TakerInfo{
		Name:      taker.Name,
		Phone:     taker.Phone,
		StudentID: taker.StudentID,
	})
	if err != nil {
		return fmt.Errorf("failed to reserve seeded item: %w", err)
	}
	if target == types.ItemStatusReserved {
		return nil
	}

	if _, err := svc.Handover(ctx, recordID, itemID); err != nil {
		return fmt.Errorf("failed to hand over seeded item: %w", err)
	}

	return nil
}
