package reconcile

import (
	"reflect"
	"testing"
)

func TestStrings_FollowingNotFollowedBack(t *testing.T) {
	following := []string{"a", "b", "c"}
	followers := []string{"b"}
	exclusions := []string{"c"}

	got := Strings(following, followers, exclusions)
	expected := []string{"a"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestStrings_PreservesOrder(t *testing.T) {
	got := Strings([]string{"zed", "amy", "bob", "kim"}, []string{"bob"}, nil)
	expected := []string{"zed", "amy", "kim"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestStrings_Deterministic(t *testing.T) {
	a := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	b := []string{"u2", "u5"}
	ex := []string{"u6"}

	first := Strings(a, b, ex)
	for i := 0; i < 20; i++ {
		if got := Strings(a, b, ex); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: expected %v, got %v", i, first, got)
		}
	}
}

func TestStrings_EmptyInputs(t *testing.T) {
	if got := Strings(nil, []string{"x"}, nil); len(got) != 0 {
		t.Errorf("Expected empty result, got %v", got)
	}
	got := Strings([]string{"x"}, nil, nil)
	if !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("Expected [x], got %v", got)
	}
}

type user struct {
	ID       string
	Username string
}

func TestAsymmetricDifference_ComparesByKey(t *testing.T) {
	following := []user{{"1", "alice"}, {"2", "bob"}, {"3", "carol"}}
	// Same username with a different id still counts as following back.
	followers := []user{{"99", "bob"}}

	got := AsymmetricDifference(following, followers, []string{"carol"}, func(u user) string { return u.Username })
	expected := []user{{"1", "alice"}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}
